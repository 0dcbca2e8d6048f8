package trap

import (
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/gosnmp/gosnmp"

	"ups_trap_gateway/internal/models"
)

const atsPrefix = "1.3.6.1.4.1.37662.1.2.3.1.2"

func v2Packet(trapOID string, extra ...gosnmp.SnmpPDU) *gosnmp.SnmpPacket {
	vars := []gosnmp.SnmpPDU{
		{Name: "." + SysUpTimeOID, Type: gosnmp.TimeTicks, Value: uint32(1234)},
		{Name: "." + TrapOIDOID, Type: gosnmp.ObjectIdentifier, Value: trapOID},
	}
	return &gosnmp.SnmpPacket{
		Version:   gosnmp.Version2c,
		Community: "public",
		PDUType:   gosnmp.SNMPv2Trap,
		Variables: append(vars, extra...),
	}
}

func TestDecode_V2c(t *testing.T) {
	t.Parallel()

	at := time.Unix(1700000000, 0)
	p := v2Packet("."+atsPrefix+".6",
		gosnmp.SnmpPDU{Name: ".1.3.6.1.4.1.37662.1.2.1.1.0", Type: gosnmp.OctetString, Value: []byte("Overload 112%")},
		gosnmp.SnmpPDU{Name: ".1.3.6.1.4.1.37662.1.2.1.2.0", Type: gosnmp.Integer, Value: 42},
	)

	raw, err := Decode(p, "10.0.0.5", at)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if raw.Code != atsPrefix+".6" {
		t.Fatalf("code: %s", raw.Code)
	}
	if raw.Source != "10.0.0.5" || !raw.ReceivedAt.Equal(at) {
		t.Fatalf("source/time: %+v", raw)
	}
	if len(raw.Payload) != 2 {
		t.Fatalf("payload should hold only data varbinds: %v", raw.Payload)
	}
	if raw.Payload["1.3.6.1.4.1.37662.1.2.1.1.0"] != "Overload 112%" {
		t.Fatalf("octet string: %v", raw.Payload)
	}
	if raw.Payload["1.3.6.1.4.1.37662.1.2.1.2.0"] != "42" {
		t.Fatalf("integer: %v", raw.Payload)
	}
}

func TestDecode_V1(t *testing.T) {
	t.Parallel()

	p := &gosnmp.SnmpPacket{
		Version: gosnmp.Version1,
		PDUType: gosnmp.Trap,
		SnmpTrap: gosnmp.SnmpTrap{
			Enterprise:   "." + atsPrefix,
			AgentAddress: "192.168.111.137",
			GenericTrap:  6,
			SpecificTrap: 35,
		},
	}
	raw, err := Decode(p, "192.168.111.137", time.Now())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if raw.Code != atsPrefix+".0.35" {
		t.Fatalf("code: %s", raw.Code)
	}
	if raw.Payload[PayloadAgentAddress] != "192.168.111.137" {
		t.Fatalf("agent address: %v", raw.Payload)
	}

	p.GenericTrap = 0
	raw, err = Decode(p, "192.168.111.137", time.Now())
	if err != nil || raw.Code != "1.3.6.1.6.3.1.1.5.1" {
		t.Fatalf("coldStart: %s %v", raw.Code, err)
	}
}

func TestDecode_NoTrapOID(t *testing.T) {
	t.Parallel()

	p := &gosnmp.SnmpPacket{Version: gosnmp.Version2c, Variables: []gosnmp.SnmpPDU{
		{Name: "." + SysUpTimeOID, Type: gosnmp.TimeTicks, Value: uint32(1)},
	}}
	if _, err := Decode(p, "10.0.0.5", time.Now()); !errors.Is(err, ErrNoTrapOID) {
		t.Fatalf("want ErrNoTrapOID, got %v", err)
	}
	if _, err := Decode(nil, "10.0.0.5", time.Now()); !errors.Is(err, ErrNoTrapOID) {
		t.Fatalf("nil packet: %v", err)
	}
}

func TestFormatValue(t *testing.T) {
	t.Parallel()

	cases := []struct {
		pdu  gosnmp.SnmpPDU
		want string
	}{
		{gosnmp.SnmpPDU{Type: gosnmp.OctetString, Value: []byte("abc")}, "abc"},
		{gosnmp.SnmpPDU{Type: gosnmp.ObjectIdentifier, Value: ".1.3.6"}, ".1.3.6"},
		{gosnmp.SnmpPDU{Type: gosnmp.IPAddress, Value: "10.1.2.3"}, "10.1.2.3"},
		{gosnmp.SnmpPDU{Type: gosnmp.Counter32, Value: uint32(7)}, "7"},
		{gosnmp.SnmpPDU{Type: gosnmp.Null}, ""},
	}
	for _, c := range cases {
		if got := FormatValue(c.pdu); got != c.want {
			t.Errorf("FormatValue(%v) = %q, want %q", c.pdu.Type, got, c.want)
		}
	}
}

type recordingSubmitter struct {
	mu  sync.Mutex
	got []models.RawNotification
	err error
}

func (s *recordingSubmitter) Submit(raw models.RawNotification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, raw)
	return s.err
}

func udp(ip string) *net.UDPAddr { return &net.UDPAddr{IP: net.ParseIP(ip), Port: 40000} }

func TestListener_AllowedSources(t *testing.T) {
	t.Parallel()

	sub := &recordingSubmitter{}
	l := NewListener("127.0.0.1:0", sub, WithAllowedSources([]string{"10.0.0.5", " "}))

	l.onTrap(v2Packet(atsPrefix+".6"), udp("10.0.0.9"))
	l.onTrap(v2Packet(atsPrefix+".6"), udp("10.0.0.5"))

	if len(sub.got) != 1 || sub.got[0].Source != "10.0.0.5" {
		t.Fatalf("submitted: %+v", sub.got)
	}
}

func TestListener_AcceptsAllWithoutAllowList(t *testing.T) {
	t.Parallel()

	sub := &recordingSubmitter{err: errors.New("queue full")}
	l := NewListener("127.0.0.1:0", sub)

	l.onTrap(v2Packet(atsPrefix+".6"), udp("10.0.0.9"))
	l.onTrap(&gosnmp.SnmpPacket{Version: gosnmp.Version2c}, udp("10.0.0.9"))

	if len(sub.got) != 1 {
		t.Fatalf("undecodable packet submitted or valid one lost: %+v", sub.got)
	}
}

func TestListener_Community(t *testing.T) {
	t.Parallel()

	sub := &recordingSubmitter{}
	l := NewListener("127.0.0.1:0", sub, WithCommunity("secret"))

	l.onTrap(v2Packet(atsPrefix+".6"), udp("10.0.0.5"))
	p := v2Packet(atsPrefix + ".6")
	p.Community = "secret"
	l.onTrap(p, udp("10.0.0.5"))

	if len(sub.got) != 1 {
		t.Fatalf("community filter: %+v", sub.got)
	}
}

func TestDirectory(t *testing.T) {
	t.Parallel()

	fallback := models.Device{Name: "UPS", Location: "Unknown Location"}
	d := NewDirectory(map[string]models.Device{
		" 10.0.0.5": {Name: "ATS-01", Location: "Server Room A"},
		"10.0.0.6":  {Name: "ATS-02"},
	}, fallback)

	if got := d.Device("10.0.0.5"); got.Name != "ATS-01" || got.Location != "Server Room A" {
		t.Fatalf("configured device: %+v", got)
	}
	if got := d.Device("10.9.9.9"); got != fallback {
		t.Fatalf("fallback: %+v", got)
	}
	if got := d.Addresses(); len(got) != 2 || got[0] != "10.0.0.5" {
		t.Fatalf("addresses: %v", got)
	}
}
