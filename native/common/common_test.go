package common

import (
	"errors"
	"testing"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

type memKV map[string]bool

func (m memKV) KVGet(key []byte, out interface{}) (bool, error) {
	v, ok := m[string(key)]
	if ok {
		*(out.(*bool)) = v
	}
	return ok, nil
}

func (m memKV) KVPut(key []byte, value interface{}) error {
	m[string(key)] = value.(bool)
	return nil
}

type roleSet map[string]bool

func (r roleSet) HasRole(role string, addr []byte) bool {
	return r[role+":"+string(addr)]
}

func TestGuardReportsPausedModule(t *testing.T) {
	pauses := NewPauses(memKV{})
	if err := Guard(pauses, "token"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := pauses.SetPaused("Token", true); err != nil {
		t.Fatalf("set paused: %v", err)
	}
	err := Guard(pauses, "token")
	if !errors.Is(err, ErrModulePaused) {
		t.Fatalf("expected ErrModulePaused, got %v", err)
	}
	if Params(err)["module"] != "token" {
		t.Fatalf("expected module parameter, got %v", Params(err))
	}
	if err := Guard(pauses, "market"); err != nil {
		t.Fatalf("other modules must stay open: %v", err)
	}
}

func TestAuthorize(t *testing.T) {
	admin := ethcommon.HexToAddress("0x01")
	roles := roleSet{RoleMinter + ":" + string(admin.Bytes()): true}
	if err := Authorize(roles, RoleMinter, admin); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := Authorize(roles, RolePauser, admin); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := Authorize(roles, RoleMinter, ethcommon.Address{}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("zero caller must be rejected, got %v", err)
	}
}

func TestWithParamsFormatsSortedKeys(t *testing.T) {
	base := errors.New("token: insufficient balance")
	err := WithParams(base, "required", "10", "available", "3")
	if err.Error() != "token: insufficient balance (available=3, required=10)" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if !errors.Is(err, base) {
		t.Fatalf("detail error must unwrap to the sentinel")
	}
	if WithParams(nil, "a", "b") != nil {
		t.Fatalf("nil error must stay nil")
	}
}
