package dto

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// --- SanitizeStruct tests ---

func TestSanitizeStruct_TrimsWhitespace(t *testing.T) {
	req := RegisterRequest{
		Username: "  alice  ",
		Password: "  pass1234  ",
		Role:     " member ",
	}
	SanitizeStruct(&req)

	assert.Equal(t, "alice", req.Username)
	assert.Equal(t, "pass1234", req.Password)
	assert.Equal(t, "member", req.Role)
}

func TestSanitizeStruct_EscapesHTML(t *testing.T) {
	req := RechargeRejectRequest{
		Reason: "voucher <script>alert('x')</script> unreadable",
	}
	SanitizeStruct(&req)

	assert.Contains(t, req.Reason, "&lt;script&gt;")
	assert.NotContains(t, req.Reason, "<script>")
}

func TestSanitizeStruct_HandlesPointerString(t *testing.T) {
	voucher := "  BANK-REF-2291  "
	req := RechargeCreateRequest{
		Amount:           "50.75",
		PaymentMethod:    "bank_transfer",
		VoucherReference: &voucher,
	}
	SanitizeStruct(&req)

	assert.Equal(t, "BANK-REF-2291", *req.VoucherReference)
}

func TestSanitizeStruct_NilPointerIsNoOp(t *testing.T) {
	req := RechargeCreateRequest{
		Amount:        "50.75",
		PaymentMethod: "bank_transfer",
	}
	SanitizeStruct(&req)
	assert.Nil(t, req.VoucherReference)
}

func TestSanitizeStruct_NonPointerIsNoOp(t *testing.T) {
	s := "hello"
	SanitizeStruct(s) // should not panic
}

// --- Custom validator tests ---

func TestMoneyAmount_Valid(t *testing.T) {
	cases := []string{
		"50.75",
		"0.0001",
		"1",
		"19.99",
		"1000000",
	}
	for _, tc := range cases {
		assert.True(t, moneyAmountOK(tc), "expected valid: %s", tc)
	}
}

func TestMoneyAmount_Invalid(t *testing.T) {
	cases := []string{
		"",
		"abc",
		"0",
		"-5.00",
		"1.00001", // more than four decimal places
		"1,50",
	}
	for _, tc := range cases {
		assert.False(t, moneyAmountOK(tc), "expected invalid: %s", tc)
	}
}
