package protocol

import (
	"errors"
	"testing"
)

func TestParseClientMessageTrigger(t *testing.T) {
	raw := []byte(`{"type":"trigger","seq":3,"request":{"user_id":"u1","tier":"pro","trigger_kind":"set-start","persona_id":"alice","context":{"exercise":"squat","set_number":2,"reps":8,"phase":"active"},"device":{"has_audio_output":true}}}`)
	msg, err := ParseClientMessage(raw)
	if err != nil {
		t.Fatalf("ParseClientMessage() error = %v", err)
	}

	trig, ok := msg.(TriggerMessage)
	if !ok {
		t.Fatalf("message type = %T, want TriggerMessage", msg)
	}
	if trig.Seq != 3 || trig.Req.UserID != "u1" {
		t.Fatalf("unexpected trigger message: %+v", trig)
	}
	if trig.Req.Context.Exercise != "squat" || !trig.Req.Device.HasAudioOutput {
		t.Fatalf("context not carried: %+v", trig.Req)
	}
}

func TestParseClientMessageRejectsUnknownType(t *testing.T) {
	_, err := ParseClientMessage([]byte(`{"type":"wat"}`))
	if !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("error = %v, want ErrUnsupportedType", err)
	}
}

func TestParseClientMessageRejectsMissingFields(t *testing.T) {
	_, err := ParseClientMessage([]byte(`{"type":"trigger","seq":1,"request":{"tier":"pro"}}`))
	if err == nil {
		t.Fatal("trigger without user_id and kind should fail")
	}
}

func TestParseClientMessageRejectsBadJSON(t *testing.T) {
	if _, err := ParseClientMessage([]byte(`{`)); err == nil {
		t.Fatal("malformed envelope should fail")
	}
}
