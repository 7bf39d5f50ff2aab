package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	cryptoinfra "veritas/internal/infra/crypto"
	"veritas/internal/usecase"
)

func runIssue(args []string) int {
	fs := flag.NewFlagSet("issue", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var dsn string
	var tenantID string
	var inPath string
	var contentHash string
	var policyID string
	var refTime string
	var outPath string
	fs.StringVar(&dsn, "dsn", "", "postgres dsn (default $POSTGRES_DSN, else in-memory)")
	fs.StringVar(&tenantID, "tenant", "", "tenant id")
	fs.StringVar(&inPath, "in", "", "content path")
	fs.StringVar(&contentHash, "content-hash", "", "hex sha-256 of content, instead of --in")
	fs.StringVar(&policyID, "policy", "", "policy identifier to pin")
	fs.StringVar(&refTime, "ref-time", "", "external reference time, RFC 3339")
	fs.StringVar(&outPath, "out", "", "output JSON path (default stdout)")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if tenantID == "" {
		fmt.Fprintln(os.Stderr, "issue requires --tenant")
		return 1
	}
	if (inPath == "" && contentHash == "") || (inPath != "" && contentHash != "") {
		fmt.Fprintln(os.Stderr, "issue requires exactly one of --in or --content-hash")
		return 1
	}

	req := usecase.IssueRequest{
		TenantID:    tenantID,
		ContentHash: contentHash,
		PolicyID:    policyID,
	}
	if inPath != "" {
		content, err := os.ReadFile(inPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "read content: %v\n", err)
			return 1
		}
		req.Content = content
	}
	if refTime != "" {
		parsed, err := time.Parse(time.RFC3339, refTime)
		if err != nil {
			fmt.Fprintf(os.Stderr, "parse ref-time: %v\n", err)
			return 1
		}
		parsedUTC := parsed.UTC()
		req.ExternalReferenceTime = &parsedUTC
	}

	st, err := openStores(dsn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open stores: %v\n", err)
		return 1
	}
	issuer := buildIssuer(st, nil, nil)

	cert, err := issuer.Issue(context.Background(), req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "issue certificate: %v\n", err)
		return 1
	}

	payload, err := cryptoinfra.Canonicalize(cert)
	if err != nil {
		fmt.Fprintf(os.Stderr, "encode certificate: %v\n", err)
		return 1
	}
	if err := writeOutput(outPath, payload); err != nil {
		fmt.Fprintf(os.Stderr, "write output: %v\n", err)
		return 1
	}
	return 0
}
