package main

import "fmt"

// cliEffects is the lityc binary's own hostiface.Effects: an abort
// prints the reason and returns an error, which the driver wraps,
// standing in for whatever gas/transaction-rollback effect a real
// contract host would apply.
type cliEffects struct{}

func (cliEffects) Abort(reason string) error {
	fmt.Printf("abort: %s\n", reason)
	return fmt.Errorf("abort: %s", reason)
}
