// ABOUTME: Blob store replies sent by the client in answer to KvServerMessage requests
// ABOUTME: A GetBlobResult with nil data means the blob was not found

package wire

// KvClientPayload is one of the blob store replies.
type KvClientPayload interface {
	Variant
	isKvClientPayload()
}

// KvClientMessage answers the KvServerMessage with the same ID.
type KvClientMessage struct {
	ID      uint32
	Payload KvClientPayload
}

// WireCase implements Variant.
func (*KvClientMessage) WireCase() string { return CaseKvClientMessage }
func (*KvClientMessage) isClientPayload() {}

// GetBlobResult returns blob contents. BlobData is nil when the blob is absent.
type GetBlobResult struct {
	BlobData []byte `json:"blobData"`
}

// SetBlobResult acknowledges a write. Error is set when the write failed.
type SetBlobResult struct {
	Error *KvError `json:"error,omitempty"`
}

// KvError describes a failed blob operation.
type KvError struct {
	Message string `json:"message"`
}

// WireCase implements Variant.
func (*GetBlobResult) WireCase() string  { return "getBlobResult" }
func (*GetBlobResult) isKvClientPayload() {}

// WireCase implements Variant.
func (*SetBlobResult) WireCase() string  { return "setBlobResult" }
func (*SetBlobResult) isKvClientPayload() {}

var kvClientCases = map[string]func() KvClientPayload{
	"getBlobResult": func() KvClientPayload { return &GetBlobResult{} },
	"setBlobResult": func() KvClientPayload { return &SetBlobResult{} },
}

// MarshalJSON implements json.Marshaler.
func (m KvClientMessage) MarshalJSON() ([]byte, error) {
	return marshalVariant(ptr(m.ID), m.Payload)
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *KvClientMessage) UnmarshalJSON(data []byte) error {
	id, p, err := unmarshalVariant(data, kvClientCases, func(u *Unknown) KvClientPayload { return u })
	if err != nil {
		return err
	}
	if id != nil {
		m.ID = *id
	}
	m.Payload = p
	return nil
}
