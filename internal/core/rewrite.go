package core

import "containercore/pkg/domain"

// RewriteBatch substitutes every placeholder occurrence in the batch with its
// registered real identifier. It walks each instruction's target and payload
// at arbitrary nesting depth; string values inside the placeholder namespace
// are replaced via the registry, everything else passes through unchanged.
//
// The function is pure: it never mutates the registry or the input batch, and
// performs no I/O. The first unresolved token aborts the rewrite, so partial
// rewriting can never leave mixed placeholder and real references on a
// persisted structure. Running it again over a fully rewritten batch is a
// no-op.
func RewriteBatch(batch Batch, registry *PlaceholderRegistry) (Batch, error) {
	out := make(Batch, len(batch))
	for i, in := range batch {
		rewritten, err := rewriteInstruction(in, i, registry)
		if err != nil {
			return nil, err
		}
		out[i] = rewritten
	}
	return out, nil
}

func rewriteInstruction(in Instruction, index int, registry *PlaceholderRegistry) (Instruction, error) {
	out := in
	if domain.IsPlaceholder(in.Target) {
		id, err := registry.ResolveAt(in.Target, index)
		if err != nil {
			return Instruction{}, err
		}
		out.Target = id
	}
	if in.Payload != nil {
		payload, err := rewriteMap(in.Payload, index, registry)
		if err != nil {
			return Instruction{}, err
		}
		out.Payload = payload
	}
	return out, nil
}

func rewriteMap(m map[string]any, index int, registry *PlaceholderRegistry) (map[string]any, error) {
	out := make(map[string]any, len(m))
	for k, v := range m {
		rewritten, err := rewriteValue(v, index, registry)
		if err != nil {
			return nil, err
		}
		out[k] = rewritten
	}
	return out, nil
}

func rewriteValue(v any, index int, registry *PlaceholderRegistry) (any, error) {
	switch val := v.(type) {
	case string:
		if !domain.IsPlaceholder(val) {
			return val, nil
		}
		return registry.ResolveAt(val, index)
	case map[string]any:
		return rewriteMap(val, index, registry)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			rewritten, err := rewriteValue(item, index, registry)
			if err != nil {
				return nil, err
			}
			out[i] = rewritten
		}
		return out, nil
	default:
		return v, nil
	}
}
