package plugin

import "context"

// Static returns its configured data on every call.
type Static struct {
	base
}

// Invoke implements tool.Plugin.
func (s *Static) Invoke(ctx context.Context, _ map[string]any) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.def.Data == nil {
		return map[string]any{}, nil
	}
	return s.def.Data, nil
}
