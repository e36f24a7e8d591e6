// Command fpd monitors first-payment-default rates by loan vintage.
package main

import "github.com/MichelOvalle/fpd-daily-mk/cmd"

func main() {
	cmd.Execute()
}
