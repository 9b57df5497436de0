package task

import "strconv"

func parseID(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}

type errString string

func (e errString) Error() string { return string(e) }
