package crypto

import (
	"context"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codatta/codattaOnchainDataVerify/pkgs/canonical"
	"github.com/codatta/codattaOnchainDataVerify/pkgs/submissions"
)

const testAddress = "0xAbC123000000000000000000000000000000dEaD"

func TestComputeFingerprintFixtures(t *testing.T) {
	cases := []struct {
		name    string
		address string
		quality string
		payload string
		want    Fingerprint
	}{
		{
			name:    "grade A object",
			address: testAddress,
			quality: "A",
			payload: `{"x":1}`,
			want:    "0x8e4dcae36148be1dd7c124c02957747bf1577dc7f508a510e4d61be1a74ba951",
		},
		{
			name:    "grade S object",
			address: testAddress,
			quality: "S",
			payload: `{"x":1}`,
			want:    "0xe2e5e23768a865b7c74859cf0d1ce3410bc993f61cd6e15dc30a930520a7f2a4",
		},
		{
			name:    "different payload",
			address: testAddress,
			quality: "A",
			payload: `{"x":2}`,
			want:    "0x76216c97df806c935a14fdd78b85355de76fa9ec5b1bf421b75092e6698e30f7",
		},
		{
			name:    "null payload no ranking",
			address: testAddress,
			quality: "",
			payload: `null`,
			want:    "0xc2f282782ebcbeabfb0b3d9e4a403111298dc5a278d750b1627c8fbc4a95bcc7",
		},
		{
			name:    "empty payload",
			address: testAddress,
			quality: "",
			payload: "",
			want:    "0x73c25b4aa3e37083735a8ac6c56783b13f01fff6ab59a25189535cb34eeb66a0",
		},
		{
			name:    "nested payload",
			address: "0x1111111111111111111111111111111111111111",
			quality: "B",
			payload: `{"a":[1,true,null],"b":{"c":"d"}}`,
			want:    "0x7c2241d438b83f6e30c8d9f8be628a00702455d881fc3ac5ed0f07bc4aebed0b",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ComputeFingerprint(tc.address, tc.quality, tc.payload)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestComputeFingerprintIgnoresAddressCase(t *testing.T) {
	mixed, err := ComputeFingerprint(testAddress, "A", `{"x":1}`)
	require.NoError(t, err)
	lower, err := ComputeFingerprint(strings.ToLower(testAddress), "A", `{"x":1}`)
	require.NoError(t, err)
	assert.Equal(t, mixed, lower)
}

func TestEncodeFingerprintPayloadLayout(t *testing.T) {
	packed, err := EncodeFingerprintPayload(testAddress, "A", `{"x":1}`)
	require.NoError(t, err)

	want := strings.Join([]string{
		"000000000000000000000000abc123000000000000000000000000000000dead",
		"0000000000000000000000000000000000000000000000000000000000000060",
		"00000000000000000000000000000000000000000000000000000000000000a0",
		"0000000000000000000000000000000000000000000000000000000000000001",
		"4100000000000000000000000000000000000000000000000000000000000000",
		"0000000000000000000000000000000000000000000000000000000000000007",
		"7b2278223a317d00000000000000000000000000000000000000000000000000",
	}, "")
	assert.Equal(t, want, hex.EncodeToString(packed))
}

func TestComputeFingerprintRejectsBadInput(t *testing.T) {
	cases := []struct {
		name    string
		address string
		quality string
		wantErr error
	}{
		{"short address", "0x1234", "A", ErrInvalidAddress},
		{"missing prefix", strings.TrimPrefix(testAddress, "0x"), "A", ErrInvalidAddress},
		{"non hex address", "0xZZC123000000000000000000000000000000dEaD", "A", ErrInvalidAddress},
		{"lowercase grade", testAddress, "a", ErrInvalidQuality},
		{"unknown grade", testAddress, "E", ErrInvalidQuality},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ComputeFingerprint(tc.address, tc.quality, `{}`)
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.wantErr)
			assert.ErrorIs(t, err, ErrFingerprint)
		})
	}
}

func TestCalculatorGenerate(t *testing.T) {
	v, err := canonical.Parse([]byte(`{ "x" : 1 }`))
	require.NoError(t, err)

	input := submissions.SubmissionInput{
		SubmissionJSON: &v,
		SubmissionID:   "sub-1",
		WalletAddress:  testAddress,
		Quality:        submissions.QualityA,
	}

	calc := NewCalculator()
	first, err := calc.Generate(context.Background(), input)
	require.NoError(t, err)
	second, err := calc.Generate(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, Fingerprint("0x8e4dcae36148be1dd7c124c02957747bf1577dc7f508a510e4d61be1a74ba951"), first)
	assert.Equal(t, first, second)
}

func TestCalculatorAbsentAndNullDiffer(t *testing.T) {
	calc := NewCalculator()
	input := submissions.SubmissionInput{SubmissionID: "sub-1", WalletAddress: testAddress}

	absent, err := calc.Compute(input)
	require.NoError(t, err)

	null := canonical.Null()
	input.SubmissionJSON = &null
	withNull, err := calc.Compute(input)
	require.NoError(t, err)

	assert.Equal(t, Fingerprint("0x73c25b4aa3e37083735a8ac6c56783b13f01fff6ab59a25189535cb34eeb66a0"), absent)
	assert.Equal(t, Fingerprint("0xc2f282782ebcbeabfb0b3d9e4a403111298dc5a278d750b1627c8fbc4a95bcc7"), withNull)
}

func TestCalculatorAvalanche(t *testing.T) {
	a, err := ComputeFingerprint(testAddress, "A", `{"x":1}`)
	require.NoError(t, err)
	b, err := ComputeFingerprint(testAddress, "A", `{"x":2}`)
	require.NoError(t, err)

	ab, err := hex.DecodeString(strings.TrimPrefix(string(a), "0x"))
	require.NoError(t, err)
	bb, err := hex.DecodeString(strings.TrimPrefix(string(b), "0x"))
	require.NoError(t, err)

	diff := 0
	for i := range ab {
		x := ab[i] ^ bb[i]
		for x != 0 {
			diff += int(x & 1)
			x >>= 1
		}
	}
	assert.Greater(t, diff, 64)
}

func TestCalculatorHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewCalculator().Generate(ctx, submissions.SubmissionInput{WalletAddress: testAddress, SubmissionID: "x"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFingerprintNormalized(t *testing.T) {
	assert.Equal(t, Fingerprint("0xabcd"), Fingerprint("  ABCD ").Normalized())
	assert.Equal(t, Fingerprint("0xabcd"), Fingerprint("0xAbCd").Normalized())
	assert.Equal(t, Fingerprint(""), Fingerprint(" ").Normalized())
}
