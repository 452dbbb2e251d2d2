package runner

import (
	"fmt"
	"io"

	"github.com/goccy/go-yaml"

	"github.com/jayvdb/xq/pkg/types"
)

// YAMLDocuments returns an iterator over the YAML documents in the stream,
// decoded into the value model with mapping key order preserved. The
// iterator returns io.EOF once the stream is exhausted.
func YAMLDocuments(in io.Reader) func() (types.Value, error) {
	dec := yaml.NewDecoder(in, yaml.UseOrderedMap())
	return func() (types.Value, error) {
		var raw interface{}
		if err := dec.Decode(&raw); err != nil {
			return nil, err
		}
		return fromYAML(raw)
	}
}

// fromYAML converts goccy/go-yaml decoded data into the value model.
// Mappings arrive as yaml.MapSlice (ordered) because the decoder runs with
// UseOrderedMap.
func fromYAML(raw interface{}) (types.Value, error) {
	switch t := raw.(type) {
	case nil:
		return types.NullValue, nil
	case bool:
		return types.Bool(t), nil
	case int:
		return types.Number(t), nil
	case int64:
		return types.Number(t), nil
	case uint64:
		return types.Number(t), nil
	case float64:
		return types.Number(t), nil
	case string:
		return types.String(t), nil
	case []interface{}:
		arr := make(types.Array, 0, len(t))
		for _, item := range t {
			v, err := fromYAML(item)
			if err != nil {
				return nil, err
			}
			arr = append(arr, v)
		}
		return arr, nil
	case yaml.MapSlice:
		pairs := make([]types.ObjectEntryPair, 0, len(t))
		for _, item := range t {
			key, ok := item.Key.(string)
			if !ok {
				return nil, fmt.Errorf("unsupported YAML mapping key %v (%T)", item.Key, item.Key)
			}
			v, err := fromYAML(item.Value)
			if err != nil {
				return nil, err
			}
			pairs = append(pairs, types.ObjectEntryPair{Key: types.String(key), Value: v})
		}
		obj, qerr := types.ConstructObject(pairs)
		if qerr != nil {
			return nil, qerr
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unsupported YAML value %v (%T)", raw, raw)
	}
}

// toYAML converts a Value into data goccy/go-yaml encodes with object key
// order intact.
func toYAML(v types.Value) interface{} {
	switch t := v.(type) {
	case types.Null:
		return nil
	case types.Bool:
		return bool(t)
	case types.Number:
		if t.IsIntegral() {
			return int64(float64(t))
		}
		return float64(t)
	case types.String:
		return string(t)
	case types.Array:
		out := make([]interface{}, len(t))
		for i, item := range t {
			out[i] = toYAML(item)
		}
		return out
	case *types.Object:
		out := make(yaml.MapSlice, 0, t.Len())
		t.Each(func(k string, item types.Value) bool {
			out = append(out, yaml.MapItem{Key: k, Value: toYAML(item)})
			return true
		})
		return out
	default:
		return nil
	}
}

// encodeYAML writes one YAML document for v.
func encodeYAML(w io.Writer, v types.Value) error {
	payload, err := yaml.Marshal(toYAML(v))
	if err != nil {
		return err
	}
	_, err = w.Write(payload)
	return err
}
