package queue

import (
	"fmt"
	"strings"
)

func qualifiedStructName(v any) string {
	return strings.TrimLeft(fmt.Sprintf("%T", v), "*")
}

func containsQueue(queues []string, queue string) bool {
	for _, q := range queues {
		if q == queue {
			return true
		}
	}
	return false
}
