// Command trapsend fires one knowledge-base trap at a gateway, for
// commissioning and wiring checks.
//
//	trapsend --target 10.0.0.2:162 --name atsOutputOverLoad
//	trapsend --target 10.0.0.2:162 --number 16 --v1 --legacy
package main

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gosnmp/gosnmp"
	"github.com/spf13/pflag"

	"ups_trap_gateway/internal/knowledge"
	"ups_trap_gateway/internal/logger"
	"ups_trap_gateway/internal/models"
	"ups_trap_gateway/internal/trap"
)

type options struct {
	target    string
	community string
	name      string
	number    int
	v1        bool
	legacy    bool
	table     string
	list      bool
	timeout   time.Duration
}

func main() {
	var o options
	pflag.StringVarP(&o.target, "target", "t", "127.0.0.1:162", "gateway host:port")
	pflag.StringVar(&o.community, "community", "public", "SNMP community")
	pflag.StringVarP(&o.name, "name", "n", "", "trap name from the event table")
	pflag.IntVar(&o.number, "number", 0, "trap number from the event table")
	pflag.BoolVar(&o.v1, "v1", false, "send an SNMPv1 trap instead of v2c")
	pflag.BoolVar(&o.legacy, "legacy", false, "use the atsAgent(2) legacy subtree")
	pflag.StringVar(&o.table, "table", "", "event table YAML (default built-in)")
	pflag.BoolVarP(&o.list, "list", "l", false, "list the event table and exit")
	pflag.DurationVar(&o.timeout, "timeout", 2*time.Second, "send timeout")
	pflag.Parse()

	log := logger.Get(logger.InfoLevel)

	kb, err := knowledge.Load(o.table)
	if err != nil {
		log.Fatalw("failed to load event table", "err", err)
	}
	if o.list {
		printTable(kb)
		return
	}

	rec, number, err := pick(kb, o)
	if err != nil {
		log.Fatalw("no trap selected", "err", err)
	}

	g, err := dial(o)
	if err != nil {
		log.Fatalw("failed to connect", "target", o.target, "err", err)
	}
	defer g.Conn.Close()

	pkt := build(kb, number, o)
	if _, err := g.SendTrap(pkt); err != nil {
		log.Fatalw("failed to send trap", "target", o.target, "err", err)
	}
	log.Infow("trap_sent", "target", o.target, "name", rec.Name, "severity", rec.Severity,
		"role", rec.Role, "v1", o.v1, "legacy", o.legacy)
}

// pick resolves --name or --number against the table.
func pick(kb *knowledge.KnowledgeBase, o options) (models.EventRecord, int, error) {
	var (
		rec models.EventRecord
		ok  bool
	)
	switch {
	case o.name != "":
		rec, ok = kb.ByName(o.name)
	case o.number > 0:
		rec, ok = kb.Lookup(kb.Base() + "." + strconv.Itoa(o.number))
	default:
		return rec, 0, errors.New("one of --name or --number is required")
	}
	if !ok {
		return rec, 0, fmt.Errorf("trap %q/%d is not in the event table", o.name, o.number)
	}
	n, err := strconv.Atoi(strings.TrimPrefix(rec.Code, kb.Base()+"."))
	if err != nil {
		return rec, 0, fmt.Errorf("trap %s: unexpected code %q", rec.Name, rec.Code)
	}
	return rec, n, nil
}

func dial(o options) (*gosnmp.GoSNMP, error) {
	host, portStr, err := net.SplitHostPort(o.target)
	if err != nil {
		return nil, err
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return nil, fmt.Errorf("bad port %q: %w", portStr, err)
	}
	g := &gosnmp.GoSNMP{
		Target:    host,
		Port:      uint16(port),
		Community: o.community,
		Version:   gosnmp.Version2c,
		Timeout:   o.timeout,
		Retries:   0,
	}
	if o.v1 {
		g.Version = gosnmp.Version1
	}
	if err := g.Connect(); err != nil {
		return nil, err
	}
	return g, nil
}

// build lays the trap out the way the firmware does: v2c carries the code in
// snmpTrapOID.0, v1 as enterprise plus specific-trap.
func build(kb *knowledge.KnowledgeBase, number int, o options) gosnmp.SnmpTrap {
	enterprise := kb.Base()
	if o.legacy {
		enterprise = strings.TrimSuffix(knowledge.LegacyPrefix, ".")
	}
	if o.v1 {
		return gosnmp.SnmpTrap{
			Enterprise:   "." + enterprise,
			AgentAddress: localAddress(),
			GenericTrap:  6,
			SpecificTrap: number,
			Timestamp:    uint(time.Now().Unix()),
		}
	}
	return gosnmp.SnmpTrap{
		Variables: []gosnmp.SnmpPDU{{
			Name:  "." + trap.TrapOIDOID,
			Type:  gosnmp.ObjectIdentifier,
			Value: "." + enterprise + ".0." + strconv.Itoa(number),
		}},
	}
}

func localAddress() string {
	addrs, err := net.InterfaceAddrs()
	if err == nil {
		for _, a := range addrs {
			if ipn, ok := a.(*net.IPNet); ok && !ipn.IP.IsLoopback() && ipn.IP.To4() != nil {
				return ipn.IP.String()
			}
		}
	}
	return "127.0.0.1"
}

func printTable(kb *knowledge.KnowledgeBase) {
	for _, rec := range kb.Records() {
		n := strings.TrimPrefix(rec.Code, kb.Base()+".")
		fmt.Fprintf(os.Stdout, "%4s  %-9s %-10s %s\n", n, rec.Severity, rec.Role, rec.Name)
	}
}
