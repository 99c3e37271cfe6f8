package cli

import (
	"encoding/json"
	"fmt"
	"sort"
)

// itemMap flattens an item to field name -> value via its JSON form, which
// is also how beakers store it.
func itemMap(item any) (map[string]any, error) {
	data, err := json.Marshal(item)
	if err != nil {
		return nil, fmt.Errorf("marshal item: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("item is not an object: %w", err)
	}
	return m, nil
}

func sortedFieldNames(m map[string]any) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// fieldString renders a field value for table display, truncating long
// strings the way the tables expect.
func fieldString(v any, maxLen int) string {
	s, ok := v.(string)
	if !ok {
		return fmt.Sprintf("%v", v)
	}
	if len(s) > maxLen {
		return fmt.Sprintf("%s... (%d)", s[:maxLen], len(s))
	}
	return s
}
