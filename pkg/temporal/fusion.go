package temporal

// MinimumOf returns the earliest non-null date, or null when every entry is
// null or the list is empty.
func MinimumOf(dates ...Date) Date {
	result := Null
	for _, d := range dates {
		if d.IsNull() {
			continue
		}
		if result.IsNull() || d.Before(result) {
			result = d
		}
	}
	return result
}

// MaximumOf is the null-skipping counterpart of MinimumOf.
func MaximumOf(dates ...Date) Date {
	result := Null
	for _, d := range dates {
		if d.IsNull() {
			continue
		}
		if result.IsNull() || d.After(result) {
			result = d
		}
	}
	return result
}

// Case returns d when cond holds and null otherwise.
func Case(cond bool, d Date) Date {
	if cond {
		return d
	}
	return Null
}
