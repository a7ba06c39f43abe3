package wasmi_test

import (
	"context"
	"fmt"
	"log"
	"strings"

	wasmi "github.com/wasmi-labs/wasmi-sub007"
)

// This is an example of metering translated code with custom costs read from TOML.
func Example_loadRuntimeConfig() {
	config, err := wasmi.LoadRuntimeConfig(strings.NewReader(`
[metering]
enabled = true

[metering.costs]
base = 2
`))
	if err != nil {
		log.Panicln(err)
	}

	funcs, err := wasmi.CompileBinary(context.Background(), config, addWasm)
	if err != nil {
		log.Panicln(err)
	}
	fmt.Println(funcs[0].Metered, config.FuelCosts().Base)

	// Output:
	// true 2
}
