package glulx

import "go.uber.org/zap"

// LoadAndRun parses a Glulx image and returns an Engine ready to execute
// it from start_func — the convenience entry point most callers want,
// mirroring KTStephano-GVM/vm/vm.go's top-level NewVM/Run split.
func LoadAndRun(data []byte, host Host, logger *zap.Logger) (*Engine, error) {
	img, hdr, err := LoadImage(data)
	if err != nil {
		return nil, err
	}
	return NewEngine(img, hdr, host, logger), nil
}

// Flush drains every channel's accumulated output text since the last
// call, exposed here so callers don't need to reach through Engine into
// the output buffer directly.
func (e *Engine) Flush() map[string]string {
	return e.output.Flush()
}
