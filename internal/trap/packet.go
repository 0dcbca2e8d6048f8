// Package trap receives SNMP traps and turns them into raw notifications.
package trap

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/gosnmp/gosnmp"

	"ups_trap_gateway/internal/models"
)

// Well-known varbinds of an SNMPv2c trap PDU.
const (
	SysUpTimeOID = "1.3.6.1.2.1.1.3.0"
	TrapOIDOID   = "1.3.6.1.6.3.1.1.4.1.0"
)

// genericTrapBase is snmpTraps; SNMPv1 generic-trap N maps to snmpTraps.(N+1).
const genericTrapBase = "1.3.6.1.6.3.1.1.5."

const enterpriseSpecific = 6

// PayloadAgentAddress carries the SNMPv1 agent-addr field.
const PayloadAgentAddress = "agent_address"

var ErrNoTrapOID = errors.New("trap: packet carries no trap OID")

// Decode extracts the trap OID and varbinds from p. Source is the sender
// address; the trap OID is returned without a leading dot.
func Decode(p *gosnmp.SnmpPacket, source string, receivedAt time.Time) (models.RawNotification, error) {
	if p == nil {
		return models.RawNotification{}, ErrNoTrapOID
	}
	raw := models.RawNotification{
		Source:     source,
		Payload:    make(map[string]string, len(p.Variables)),
		ReceivedAt: receivedAt,
	}

	if p.Version == gosnmp.Version1 {
		raw.Code = v1TrapOID(p)
		if p.AgentAddress != "" && p.AgentAddress != "0.0.0.0" {
			raw.Payload[PayloadAgentAddress] = p.AgentAddress
		}
	}

	for _, v := range p.Variables {
		name := trimOID(v.Name)
		switch name {
		case SysUpTimeOID:
			continue
		case TrapOIDOID:
			if raw.Code == "" {
				raw.Code = trimOID(FormatValue(v))
			}
			continue
		}
		raw.Payload[name] = FormatValue(v)
	}

	if raw.Code == "" {
		return models.RawNotification{}, ErrNoTrapOID
	}
	return raw, nil
}

func v1TrapOID(p *gosnmp.SnmpPacket) string {
	if p.GenericTrap != enterpriseSpecific {
		return genericTrapBase + strconv.Itoa(p.GenericTrap+1)
	}
	enterprise := trimOID(p.Enterprise)
	if enterprise == "" {
		return ""
	}
	return enterprise + ".0." + strconv.Itoa(p.SpecificTrap)
}

// FormatValue renders a varbind value for journals and message bodies.
func FormatValue(v gosnmp.SnmpPDU) string {
	switch v.Type {
	case gosnmp.OctetString:
		if b, ok := v.Value.([]byte); ok {
			return string(b)
		}
	case gosnmp.ObjectIdentifier:
		if s, ok := v.Value.(string); ok {
			return s
		}
	case gosnmp.IPAddress:
		if s, ok := v.Value.(string); ok {
			return s
		}
		if ip, ok := v.Value.(net.IP); ok {
			return ip.String()
		}
	case gosnmp.Null, gosnmp.NoSuchObject, gosnmp.NoSuchInstance, gosnmp.EndOfMibView:
		return ""
	case gosnmp.Integer, gosnmp.Counter32, gosnmp.Gauge32, gosnmp.TimeTicks, gosnmp.Counter64, gosnmp.Uinteger32:
		return gosnmp.ToBigInt(v.Value).String()
	}
	if v.Value == nil {
		return ""
	}
	return fmt.Sprint(v.Value)
}

func trimOID(oid string) string {
	return strings.TrimLeft(strings.TrimSpace(oid), ".")
}
