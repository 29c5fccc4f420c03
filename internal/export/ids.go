package export

import (
	"strconv"
	"strings"
)

// ParseIDs parses a comma separated id list. Entries that are not plain
// non-negative integers are dropped. An empty or blank input returns nil,
// meaning every waybill; input where nothing survives returns an empty
// non-nil slice, meaning none.
func ParseIDs(raw string) []int64 {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	ids := []int64{}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" || !isDigits(part) {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
