package utils

import (
	"bytes"
	"fmt"

	"github.com/bytedance/sonic"
)

const maxPooledBufferSize = 16 * 1024

var jsonBuffers = newBufferPool(1024)

// Marshal encodes data as JSON without a trailing newline. Encoding goes
// through a pooled buffer so hot paths (cache values, storage records)
// avoid per-call allocations.
func Marshal(data interface{}) ([]byte, error) {
	buf := jsonBuffers.get()
	defer jsonBuffers.put(buf)

	if err := sonic.ConfigDefault.NewEncoder(buf).Encode(data); err != nil {
		return nil, err
	}

	out := buf.Bytes()
	out = bytes.TrimSuffix(out, []byte("\n"))

	result := make([]byte, len(out))
	copy(result, out)
	return result, nil
}

func Unmarshal[T any](data []byte, target *T) error {
	return sonic.ConfigDefault.Unmarshal(data, target)
}

// UnmarshalConfig converts a weakly typed config section (usually a
// map[string]interface{} from YAML) into a concrete config struct.
func UnmarshalConfig[T any](config interface{}, target *T) error {
	if config == nil {
		return fmt.Errorf("config is nil")
	}

	if typed, ok := config.(*T); ok {
		*target = *typed
		return nil
	}

	raw, err := sonic.ConfigDefault.Marshal(config)
	if err != nil {
		return err
	}
	return sonic.ConfigDefault.Unmarshal(raw, target)
}
