// Command madnessquery resolves an mDNS service type against every
// eligible local interface and prints whatever the library's Client
// discovers before its deadline.
//
// Usage:
//
//	madnessquery -service _http._tcp.local
//	madnessquery -service _http._tcp.local -family ip4 -timeout 3s
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ausimian/madness"
	"github.com/ausimian/madness/config"
)

func main() {
	service := flag.String("service", config.DefaultServiceTag, "service type to query, e.g. _http._tcp.local")
	family := flag.String("family", "any", "address family to query: any, ip4, or ip6")
	timeout := flag.Duration("timeout", config.DefaultTimeout, "how long to wait for responses")
	iface := flag.String("interface", "", "restrict the query to a single named interface")
	flag.Parse()

	fam, err := parseFamily(*family)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		flag.Usage()
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		fmt.Println("\ninterrupted, shutting down")
		cancel()
	}()

	opts := []madness.Option{
		madness.WithFamily(fam),
		madness.WithTimeout(config.Duration(*timeout)),
	}
	if *iface != "" {
		opts = append(opts, madness.WithInterface(*iface))
	}

	questions := []madness.Question{{
		Name:  *service,
		Type:  madness.TypePTR,
		Class: madness.ClassIN,
	}}

	client, err := madness.Query(questions, opts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "query: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()

	fmt.Printf("querying %s (family=%s, timeout=%s)...\n", *service, *family, *timeout)

	out, err := client.Stream(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "stream: %v\n", err)
		os.Exit(1)
	}

	count := 0
	for resp := range out {
		for _, rr := range resp.Message.Answers {
			printRecord(resp.IfIndex, resp.Family, rr)
			count++
		}
	}

	fmt.Printf("done: %d record(s) seen\n", count)
}

func parseFamily(s string) (madness.Family, error) {
	switch s {
	case "any", "":
		return madness.FamilyAny, nil
	case "ip4":
		return madness.FamilyIPv4, nil
	case "ip6":
		return madness.FamilyIPv6, nil
	default:
		return madness.FamilyAny, fmt.Errorf("unknown family %q: want any, ip4, or ip6", s)
	}
}

func printRecord(ifidx int, family madness.Family, rr madness.ResourceRecord) {
	fmt.Printf("[if=%d %s] %-24s %-6s ttl=%-6d %s\n", ifidx, family, rr.Name, rr.Type, rr.TTL, formatRdata(rr))
}

func formatRdata(rr madness.ResourceRecord) string {
	switch rr.Type {
	case madness.TypePTR, madness.TypeCNAME:
		return rr.Rdata.Name
	case madness.TypeSRV:
		return fmt.Sprintf("%s:%d", rr.Rdata.SRV.Target, rr.Rdata.SRV.Port)
	case madness.TypeA:
		a := rr.Rdata.A
		return fmt.Sprintf("%d.%d.%d.%d", a[0], a[1], a[2], a[3])
	case madness.TypeAAAA:
		groups := rr.Rdata.AAAA
		return fmt.Sprintf("%x:%x:%x:%x:%x:%x:%x:%x",
			groups[0], groups[1], groups[2], groups[3], groups[4], groups[5], groups[6], groups[7])
	case madness.TypeTXT:
		return fmt.Sprintf("%d entries", len(rr.Rdata.TXT))
	default:
		return ""
	}
}
