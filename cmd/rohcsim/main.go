// rohcsim drives the rohctcp profile entry points over a synthetic packet
// trace and prints a one-line-per-packet summary, in the spirit of the
// pack's csvtool: a flat tabular dump of per-record facts, minus the CSV
// marshaling csvtool used (there is only one consumer of that output
// here, so gocsv has no second job to do).
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/m-lab/go/flagx"
	"github.com/m-lab/go/rtx"

	"github.com/rohc-tcp/compressor/cmd/rohcsim/trace"
	"github.com/rohc-tcp/compressor/rohctcp"
)

var (
	scenarioList = flag.String("scenario", "steady", "comma-separated list of trace scenarios to run (steady, ecn, ttl-change, options-churn)")
	packets      = flag.Int("packets", 20, "number of packets to generate per scenario")
	payload      = flag.Int("payload", 1460, "steady-state TCP payload size in bytes")
	destCap      = flag.Int("dest-cap", 1500, "destination buffer capacity for Encode")
)

func main() {
	flag.Parse()
	rtx.Must(flagx.ArgsFromEnv(flag.CommandLine), "Could not get args from environment variables")

	scenarios := strings.Split(*scenarioList, ",")

	var seed uint16
	rnd := func() uint16 {
		seed++
		return seed
	}

	for _, name := range scenarios {
		gen, ok := trace.Scenario(name)
		if !ok {
			log.Fatalf("rohcsim: unknown scenario %q", name)
		}
		if err := run(name, gen(*packets, *payload), rnd); err != nil {
			log.Fatalf("rohcsim: scenario %q: %v", name, err)
		}
	}
}

func run(name string, pkts [][]byte, rnd func() uint16) error {
	if len(pkts) == 0 {
		return nil
	}

	ctx, err := rohctcp.Create(pkts[0], rnd)
	if err != nil {
		return fmt.Errorf("create: %w", err)
	}

	dest := make([]byte, *destCap)
	for i, raw := range pkts {
		result, parsed := rohctcp.CheckContext(ctx, raw)
		if result != rohctcp.MatchBelongs {
			return fmt.Errorf("packet %d: CheckContext = %v", i, result)
		}
		n, format, payloadOffset, err := rohctcp.Encode(ctx, parsed, dest)
		if err != nil {
			return fmt.Errorf("packet %d: encode: %w", i, err)
		}
		fmt.Fprintf(os.Stdout, "%s\t%d\tformat=%-10s rohc_len=%-4d payload_offset=%d\n",
			name, i, format, n, payloadOffset)
	}
	rohctcp.Destroy(ctx)
	return nil
}
