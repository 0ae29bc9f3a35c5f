package sanitizer

// NormalizeIDs trims every id and drops empty ones. Order and duplicates are
// kept so validation can still report a repeated selection.
func NormalizeIDs(ids []string) []string {
	if ids == nil {
		return nil
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = TrimAndNormalize(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}
