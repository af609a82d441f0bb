package generator

import "context"

// MockLLM is a scripted stand-in for local debugging and tests; it emits
// Response in ChunkSize-byte fragments without calling any external model.
type MockLLM struct {
	Response  string
	ChunkSize int
	Err       error
}

func (m MockLLM) CompleteStream(ctx context.Context, _ Prompt, onDelta func(string) error) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}
	resp := m.Response
	if resp == "" {
		resp = `{"developer": "Sample developer note for local debugging.", "marketing": "A sample improvement everyone will enjoy."}`
	}
	size := m.ChunkSize
	if size <= 0 {
		size = 8
	}
	for i := 0; i < len(resp); i += size {
		if err := ctx.Err(); err != nil {
			return resp[:i], err
		}
		end := i + size
		if end > len(resp) {
			end = len(resp)
		}
		if onDelta != nil {
			if err := onDelta(resp[i:end]); err != nil {
				return resp[:end], err
			}
		}
	}
	return resp, nil
}
