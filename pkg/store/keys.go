package store

import (
	"fmt"

	"threadcast/pkg/models"
)

// Key layout: thread:<threadKey>:evt:<time, zero padded to 20 digits>.
// Zero padding keeps lexicographic order equal to numeric time order, so
// a prefix scan yields the partition in time order.

func threadPrefix(key models.ThreadKey) []byte {
	return []byte("thread:" + string(key) + ":evt:")
}

func eventKey(key models.ThreadKey, eventTime int64) []byte {
	return []byte(fmt.Sprintf("thread:%s:evt:%020d", string(key), eventTime))
}

// prefixUpperBound returns the smallest key greater than every key with
// the given prefix, for use as an iterator UpperBound.
func prefixUpperBound(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil // prefix was all 0xff; no upper bound
}
