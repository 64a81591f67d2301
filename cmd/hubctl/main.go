// hubctl operates a user's payment channel with a hub from the command
// line.
//
// Settings are read from flags, HUBCTL_* environment variables and
// ~/.hubctl.yaml, in that order.
package main

import "perun.network/perun-hub-backend/cmd/hubctl/cmd"

func main() {
	cmd.Execute()
}
