package service

// clip bounds s to at most max bytes without splitting a UTF-8 sequence.
func clip(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	out := make([]rune, 0, max)
	size := 0
	for _, r := range s {
		size += len(string(r))
		if size > max {
			break
		}
		out = append(out, r)
	}
	return string(out)
}
