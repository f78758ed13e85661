// Command executors runs worker pool profiles: the classic sizing-policy
// demonstrations, configured workloads with a Prometheus endpoint, and
// helpers to inspect configuration and cron expressions.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
