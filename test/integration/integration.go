package integration

import (
	"testing"

	"github.com/onsi/ginkgo"
	"github.com/onsi/gomega"

	// register framework
	_ "github.com/valkeykit/valkey-router/test/integration/framework"
)

// RunIntegrationTests runs the integration suite against a live cluster
func RunIntegrationTests(t *testing.T) {
	gomega.RegisterFailHandler(ginkgo.Fail)
	ginkgo.RunSpecs(t, "ValkeyRouter Suite")
}
