package cli

import (
	"testing"

	"go.viam.com/lfd/testutils"
)

func TestMain(m *testing.M) {
	testutils.VerifyTestMain(m)
}
