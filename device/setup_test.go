package device

import (
	"errors"
	"testing"

	"github.com/ardnew/musb/pkg"
)

func TestParseSetupPacket(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		want    SetupPacket
		wantErr bool
	}{
		{
			name: "GET_DESCRIPTOR device",
			data: []byte{0x80, 0x06, 0x00, 0x01, 0x00, 0x00, 0x12, 0x00},
			want: SetupPacket{
				RequestType: 0x80,
				Request:     0x06,
				Value:       0x0100,
				Index:       0x0000,
				Length:      18,
			},
		},
		{
			name: "SET_ADDRESS",
			data: []byte{0x00, 0x05, 0x05, 0x00, 0x00, 0x00, 0x00, 0x00},
			want: SetupPacket{
				RequestType: 0x00,
				Request:     0x05,
				Value:       5,
			},
		},
		{
			name:    "too short",
			data:    []byte{0x80, 0x06, 0x00},
			wantErr: true,
		},
		{
			name:    "too long",
			data:    make([]byte, 9),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got SetupPacket
			err := ParseSetupPacket(tt.data, &got)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseSetupPacket() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr {
				if !errors.Is(err, pkg.ErrMalformedSetup) {
					t.Errorf("ParseSetupPacket() error = %v, want ErrMalformedSetup", err)
				}
				return
			}
			if got != tt.want {
				t.Errorf("ParseSetupPacket() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestSetupPacketBytes(t *testing.T) {
	var pkt SetupPacket
	GetDescriptorSetup(&pkt, DescriptorTypeDevice, 0, 18)

	want := [SetupPacketSize]byte{0x80, 0x06, 0x00, 0x01, 0x00, 0x00, 0x12, 0x00}
	if got := pkt.Bytes(); got != want {
		t.Errorf("Bytes() = % x, want % x", got, want)
	}
	if n := pkt.MarshalTo(make([]byte, 4)); n != 0 {
		t.Errorf("MarshalTo(short) = %d, want 0", n)
	}
}

func TestSetupPacketFields(t *testing.T) {
	tests := []struct {
		name        string
		requestType uint8
		wantD2H     bool
		wantType    uint8
		wantRecip   uint8
	}{
		{"standard IN", 0x80, true, RequestTypeStandard, RequestRecipientDevice},
		{"standard OUT", 0x00, false, RequestTypeStandard, RequestRecipientDevice},
		{"class IN interface", 0xA1, true, RequestTypeClass, RequestRecipientInterface},
		{"vendor OUT endpoint", 0x42, false, RequestTypeVendor, RequestRecipientEndpoint},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pkt := &SetupPacket{RequestType: tt.requestType}
			if got := pkt.IsDeviceToHost(); got != tt.wantD2H {
				t.Errorf("IsDeviceToHost() = %v, want %v", got, tt.wantD2H)
			}
			if got := pkt.Type(); got != tt.wantType {
				t.Errorf("Type() = 0x%02X, want 0x%02X", got, tt.wantType)
			}
			if got := pkt.Recipient(); got != tt.wantRecip {
				t.Errorf("Recipient() = 0x%02X, want 0x%02X", got, tt.wantRecip)
			}
			if got := pkt.IsStandard(); got != (tt.wantType == RequestTypeStandard) {
				t.Errorf("IsStandard() = %v", got)
			}
		})
	}
}

func TestSetupBuilders(t *testing.T) {
	var pkt SetupPacket

	SetAddressSetup(&pkt, 7)
	if pkt.Request != RequestSetAddress || pkt.Value != 7 || pkt.Length != 0 || pkt.IsDeviceToHost() {
		t.Errorf("SetAddressSetup() = %+v", pkt)
	}

	SetConfigurationSetup(&pkt, 1)
	if pkt.Request != RequestSetConfiguration || pkt.Value != 1 || pkt.Length != 0 {
		t.Errorf("SetConfigurationSetup() = %+v", pkt)
	}

	SetDescriptorSetup(&pkt, DescriptorTypeString, 2, 100)
	if pkt.IsDeviceToHost() || pkt.Length != 100 || pkt.Value != 0x0302 {
		t.Errorf("SetDescriptorSetup() = %+v", pkt)
	}

	if s := pkt.String(); s == "" {
		t.Error("String() is empty")
	}
}
