package signpkg

import "testing"

func TestSignVerify(t *testing.T) {
	body := []byte(`{"status":"success"}`)
	signature := Sign("secret", body)

	testCases := []struct {
		name      string
		secret    string
		body      []byte
		signature string
		want      bool
	}{
		{name: "OK", secret: "secret", body: body, signature: signature, want: true},
		{name: "WrongSecret", secret: "other", body: body, signature: signature},
		{name: "TamperedBody", secret: "secret", body: []byte(`{"status":"failed"}`), signature: signature},
		{name: "NotHex", secret: "secret", body: body, signature: "zz"},
		{name: "Empty", secret: "secret", body: body},
	}

	for _, tc := range testCases {
		if got := Verify(tc.secret, tc.body, tc.signature); got != tc.want {
			t.Errorf("%s: Verify() = %v, want %v", tc.name, got, tc.want)
		}
	}
}
