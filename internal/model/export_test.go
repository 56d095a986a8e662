package model

import "fmt"

func wrapForTest(err error) error {
	return fmt.Errorf("failed to record completion: %w", err)
}
