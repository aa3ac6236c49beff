package terminal

import (
	"errors"
	"fmt"
	"testing"
)

func TestTerminalErrorFormatting(t *testing.T) {
	plain := NewError(CodeNoReadersFound, "no readers found")
	if plain.Error() != "NO_READERS_FOUND: no readers found" {
		t.Errorf("Unexpected error string: %s", plain.Error())
	}

	cause := fmt.Errorf("dial tcp: connection refused")
	wrapped := WrapError(CodeConnectionTokenFailed, "token fetch failed", cause)
	if wrapped.Error() != "CONNECTION_TOKEN_FAILED: token fetch failed: dial tcp: connection refused" {
		t.Errorf("Unexpected wrapped error string: %s", wrapped.Error())
	}
}

func TestTerminalErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	wrapped := WrapError(CodePaymentProcessingFailed, "processing failed", cause)

	if !errors.Is(wrapped, cause) {
		t.Error("errors.Is should find the underlying cause")
	}

	var terr *TerminalError
	if !errors.As(error(wrapped), &terr) {
		t.Fatal("errors.As should match *TerminalError")
	}
	if terr.Code != CodePaymentProcessingFailed {
		t.Errorf("Unexpected code after errors.As: %s", terr.Code)
	}
}

func TestResultConstructors(t *testing.T) {
	ok := Ok("value")
	if !ok.Success || ok.Data != "value" || ok.Err != nil {
		t.Errorf("Ok result malformed: %+v", ok)
	}

	fail := FailCode[string](CodeOperationTimeout, "timed out")
	if fail.Success || fail.Err == nil {
		t.Fatalf("FailCode result malformed: %+v", fail)
	}
	if fail.Err.Code != CodeOperationTimeout {
		t.Errorf("Unexpected code: %s", fail.Err.Code)
	}

	wrapped := Fail[int](NewError(CodeConfigInvalid, "bad config"))
	if wrapped.Success || wrapped.Err.Code != CodeConfigInvalid {
		t.Errorf("Fail result malformed: %+v", wrapped)
	}
}

func TestAdapterRegistry(t *testing.T) {
	name := "test_adapter_registry"
	RegisterAdapter(name, func(cb Callbacks) (DeviceSDK, error) {
		return nil, nil
	})

	if _, err := GetAdapter(name); err != nil {
		t.Errorf("Registered adapter not found: %v", err)
	}
	if _, err := GetAdapter("never_registered"); err == nil {
		t.Error("Expected error for unknown adapter")
	}

	// Duplicate registration keeps the first factory.
	RegisterAdapter(name, func(cb Callbacks) (DeviceSDK, error) {
		return nil, errors.New("should not replace")
	})
	factory, err := GetAdapter(name)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := factory(Callbacks{}); err != nil {
		t.Errorf("First registration should have been kept: %v", err)
	}
}
