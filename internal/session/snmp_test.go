package session

import (
	"testing"

	"github.com/gosnmp/gosnmp"
)

func TestDecodeMgmtAddr(t *testing.T) {
	tests := []struct {
		name string
		pdu  gosnmp.SnmpPDU
		want string
	}{
		{
			name: "dotted string value",
			pdu:  gosnmp.SnmpPDU{Value: "10.0.0.2"},
			want: "10.0.0.2",
		},
		{
			name: "binary ipv4 value",
			pdu:  gosnmp.SnmpPDU{Value: []byte{10, 0, 0, 3}},
			want: "10.0.0.3",
		},
		{
			name: "address in oid index",
			pdu: gosnmp.SnmpPDU{
				Name:  ".1.0.8802.1.1.2.1.4.2.1.4.0.2.1.1.4.10.0.0.4",
				Value: 5,
			},
			want: "10.0.0.4",
		},
		{
			name: "unspecified binary",
			pdu:  gosnmp.SnmpPDU{Value: []byte{0, 0, 0, 0}},
			want: "",
		},
		{
			name: "garbage value and oid",
			pdu:  gosnmp.SnmpPDU{Name: ".1.3", Value: "bogus"},
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := decodeMgmtAddr(tt.pdu); got != tt.want {
				t.Errorf("decodeMgmtAddr() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAddrFromOIDIndex(t *testing.T) {
	if got := addrFromOIDIndex(".1.2.3.4.192.168.1.10"); got != "192.168.1.10" {
		t.Errorf("addrFromOIDIndex() = %q, want trailing address", got)
	}
	if got := addrFromOIDIndex(".1.2"); got != "" {
		t.Errorf("addrFromOIDIndex(short) = %q, want empty", got)
	}
}
