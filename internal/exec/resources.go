// ABOUTME: Catalog of exec resources, each identified by its (argsCase, resultCase) pair.
// ABOUTME: The args case selects the handler; the result case tags every result it emits.

package exec

// Resource identifies one kind of exec on the wire.
type Resource struct {
	ArgsCase   string
	ResultCase string
	Streaming  bool
}

func (r Resource) String() string { return r.ArgsCase }

var (
	Read             = Resource{ArgsCase: "readArgs", ResultCase: "readResult"}
	Write            = Resource{ArgsCase: "writeArgs", ResultCase: "writeResult"}
	Delete           = Resource{ArgsCase: "deleteArgs", ResultCase: "deleteResult"}
	Shell            = Resource{ArgsCase: "shellArgs", ResultCase: "shellResult"}
	ShellStream      = Resource{ArgsCase: "shellStreamArgs", ResultCase: "shellStream", Streaming: true}
	Grep             = Resource{ArgsCase: "grepArgs", ResultCase: "grepResult"}
	Ls               = Resource{ArgsCase: "lsArgs", ResultCase: "lsResult"}
	Diagnostics      = Resource{ArgsCase: "diagnosticsArgs", ResultCase: "diagnosticsResult"}
	RequestContext   = Resource{ArgsCase: "requestContextArgs", ResultCase: "requestContextResult"}
	Mcp              = Resource{ArgsCase: "mcpArgs", ResultCase: "mcpResult"}
	ListMcpResources = Resource{ArgsCase: "listMcpResourcesExecArgs", ResultCase: "listMcpResourcesExecResult"}
	ReadMcpResource  = Resource{ArgsCase: "readMcpResourceExecArgs", ResultCase: "readMcpResourceExecResult"}
	BackgroundShell  = Resource{ArgsCase: "backgroundShellSpawnArgs", ResultCase: "backgroundShellSpawnResult"}
	WriteShellStdin  = Resource{ArgsCase: "writeShellStdinArgs", ResultCase: "writeShellStdinResult"}
	Fetch            = Resource{ArgsCase: "fetchArgs", ResultCase: "fetchResult"}
	RecordScreen     = Resource{ArgsCase: "recordScreenArgs", ResultCase: "recordScreenResult"}
	ComputerUse      = Resource{ArgsCase: "computerUseArgs", ResultCase: "computerUseResult"}
	ExecuteHook      = Resource{ArgsCase: "executeHookArgs", ResultCase: "executeHookResult"}
)

// Catalog lists every resource known to this build.
func Catalog() []Resource {
	return []Resource{
		Read, Write, Delete, Shell, ShellStream, Grep, Ls, Diagnostics, RequestContext,
		Mcp, ListMcpResources, ReadMcpResource, BackgroundShell, WriteShellStdin,
		Fetch, RecordScreen, ComputerUse, ExecuteHook,
	}
}
