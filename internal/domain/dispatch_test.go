package domain

import (
	"errors"
	"strings"
	"testing"
)

func TestParseStatusFromString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    Status
		wantErr bool
	}{
		{name: "valid uppercase", input: "SENT", want: StatusSent},
		{name: "valid lowercase with spaces", input: " rejected ", want: StatusRejected},
		{name: "invalid", input: "queued", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseStatusFromString(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("ParseStatusFromString() error = %v, want ErrValidation", err)
				}
				return
			}

			if err != nil {
				t.Fatalf("ParseStatusFromString() unexpected error = %v", err)
			}
			if got != tt.want {
				t.Fatalf("ParseStatusFromString() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestMessageValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		msg     Message
		wantErr bool
	}{
		{name: "valid", msg: Message{To: "+15559876543", Body: "hello"}},
		{name: "missing recipient", msg: Message{Body: "hello"}, wantErr: true},
		{name: "blank body", msg: Message{To: "+15559876543", Body: "   "}, wantErr: true},
		{name: "body at limit", msg: Message{To: "+15559876543", Body: strings.Repeat("ü", MaxSMSBody)}},
		{name: "body over limit", msg: Message{To: "+15559876543", Body: strings.Repeat("a", MaxSMSBody+1)}, wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.msg.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("Validate() error = %v, want ErrValidation", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Validate() unexpected error = %v", err)
			}
		})
	}
}

func TestDispatchSucceeded(t *testing.T) {
	t.Parallel()

	if (&Dispatch{Status: StatusRejected}).Succeeded() {
		t.Fatal("rejected dispatch should not report success")
	}
	if !(&Dispatch{Status: StatusSent}).Succeeded() {
		t.Fatal("sent dispatch should report success")
	}
	var nilDispatch *Dispatch
	if nilDispatch.Succeeded() {
		t.Fatal("nil dispatch should not report success")
	}
}
