package response

import (
	"encoding/json"
	"testing"
)

func TestErrorDefaultsMessage(t *testing.T) {
	r := Error(CodeConflict, "")
	if r.Code != 409 || r.Msg != "Conflict" {
		t.Fatalf("resp = %+v", r)
	}
	if r := Error(CodeUnauthorized, "invalid token"); r.Msg != "invalid token" {
		t.Fatalf("custom msg lost: %+v", r)
	}
}

func TestNilDataEncodesAsObject(t *testing.T) {
	b, err := json.Marshal(OK(nil))
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"code":0,"msg":"OK","data":{}}` {
		t.Fatalf("json = %s", b)
	}
}
