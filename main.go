// folio runs the portfolio chat relay and its terminal client.
package main

import "github.com/fbarrios/folio/cmd"

func main() {
	cmd.Execute()
}
