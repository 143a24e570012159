package synchro_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestSynchro(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Synchro Suite")
}
