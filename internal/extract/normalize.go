package extract

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// maxFieldCount bounds how many fields one document may carry.
const maxFieldCount = 64

// NormalizeFields turns the parser's raw JSON object into Fields:
// - trims keys and values
// - drops null, empty, and non-string values
// - rejects documents with an unreasonable field count
// Returns the names it dropped so callers can log them.
func NormalizeFields(raw []byte, logger *slog.Logger) (Fields, []string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, nil, fmt.Errorf("normalize: decode: %w", err)
	}
	if len(m) > maxFieldCount {
		return nil, nil, fmt.Errorf("normalize: %d fields exceeds limit of %d", len(m), maxFieldCount)
	}

	fields := make(Fields, len(m))
	var dropped []string
	for k, v := range m {
		name := strings.TrimSpace(k)
		if name == "" {
			dropped = append(dropped, k+"(blank name)")
			continue
		}
		switch t := v.(type) {
		case string:
			s := strings.TrimSpace(t)
			if s == "" {
				dropped = append(dropped, name+"(empty)")
				continue
			}
			fields[name] = s
		case nil:
			dropped = append(dropped, name+"(null)")
		default:
			dropped = append(dropped, name+"(type)")
		}
	}

	if len(dropped) > 0 {
		sort.Strings(dropped)
		logger.Warn("parser.normalize.dropped", "dropped", dropped)
	}
	return fields, dropped, nil
}
