package main

import (
	"fmt"
	"os"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		usage()
		return 1
	}
	switch args[0] {
	case "serve":
		return runServe(args[1:])
	case "issue":
		return runIssue(args[1:])
	case "verify":
		return runVerify(args[1:])
	case "chain-verify":
		return runChainVerify(args[1:])
	case "rotate-key":
		return runRotateKey(args[1:])
	case "export-key":
		return runExportKey(args[1:])
	case "audit-verify":
		return runAuditVerify(args[1:])
	case "anchor":
		return runAnchor(args[1:])
	case "gc-nonces":
		return runGCNonces(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", args[0])
		usage()
		return 1
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: veritas <command> [flags]

commands:
  serve         run the certificate engine HTTP service
  issue         issue a certificate for content
  verify        verify a certificate offline
  chain-verify  verify an exported tenant chain offline
  rotate-key    rotate a tenant's signing key
  export-key    export a tenant public key as PEM
  audit-verify  re-verify a tenant's audit ledger chain
  anchor        anchor a tenant's audit ledger window
  gc-nonces     delete nonces past the retention window`)
}
