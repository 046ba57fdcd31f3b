package integration

import (
	"context"
	"fmt"
	"time"

	// for test lisibility
	. "github.com/onsi/ginkgo"
	// for test lisibility
	. "github.com/onsi/gomega"

	"github.com/valkeykit/valkey-router/pkg/cluster"
	"github.com/valkeykit/valkey-router/test/integration/framework"
)

var _ = Describe("Router against a live cluster", func() {
	var router *cluster.Router
	var channel *cluster.Connections
	var ctx context.Context
	var cancel context.CancelFunc

	BeforeEach(func() {
		if !framework.ClusterConfigured() {
			Skip("no cluster addresses given, use --addrs")
		}
		router, channel = framework.NewRouter()
		ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
	})

	AfterEach(func() {
		if channel != nil {
			channel.Close()
		}
		if cancel != nil {
			cancel()
		}
	})

	It("should discover a fully covered topology", func() {
		topology, err := router.Topology(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(topology.Masters()).NotTo(BeEmpty())
		Expect(topology.Covered()).To(BeTrue())
	})

	It("should route single key commands to the owning master", func() {
		key := []byte(fmt.Sprintf("it:route:%d", time.Now().UnixNano()))
		_, err := router.Execute(ctx, "SET", [][]byte{key}, cluster.DefaultRoute, key, "value")
		Expect(err).NotTo(HaveOccurred())

		reply, err := router.Execute(ctx, "GET", [][]byte{key}, cluster.DefaultRoute, key)
		Expect(err).NotTo(HaveOccurred())
		Expect(reply).To(Equal([]byte("value")))

		_, err = router.Del(ctx, key)
		Expect(err).NotTo(HaveOccurred())
	})

	It("should set and read keys spanning several slots", func() {
		stamp := time.Now().UnixNano()
		keyA := fmt.Sprintf("it:multi:a:%d", stamp)
		keyB := fmt.Sprintf("it:multi:b:%d", stamp)

		err := router.MSet(ctx, map[string][]byte{
			keyA: []byte("1"),
			keyB: []byte("2"),
		})
		Expect(err).NotTo(HaveOccurred())

		values, err := router.MGet(ctx, []byte(keyA), []byte(keyB))
		Expect(err).NotTo(HaveOccurred())
		Expect(values).To(Equal([][]byte{[]byte("1"), []byte("2")}))

		count, err := router.Del(ctx, []byte(keyA), []byte(keyB))
		Expect(err).NotTo(HaveOccurred())
		Expect(count).To(Equal(int64(2)))
	})

	It("should rename a key across slots", func() {
		stamp := time.Now().UnixNano()
		oldKey := []byte(fmt.Sprintf("it:rename:old:%d", stamp))
		newKey := []byte(fmt.Sprintf("it:rename:new:%d", stamp))

		_, err := router.Execute(ctx, "SET", [][]byte{oldKey}, cluster.DefaultRoute, oldKey, "payload")
		Expect(err).NotTo(HaveOccurred())

		Expect(router.Rename(ctx, oldKey, newKey)).To(Succeed())

		exists, err := router.Exists(ctx, oldKey)
		Expect(err).NotTo(HaveOccurred())
		Expect(exists).To(Equal(int64(0)))

		reply, err := router.Execute(ctx, "GET", [][]byte{newKey}, cluster.DefaultRoute, newKey)
		Expect(err).NotTo(HaveOccurred())
		Expect(reply).To(Equal([]byte("payload")))

		_, err = router.Del(ctx, newKey)
		Expect(err).NotTo(HaveOccurred())
	})

	It("should pop the first available element across masters", func() {
		stamp := time.Now().UnixNano()
		keyA := []byte(fmt.Sprintf("it:pop:a:%d", stamp))
		keyB := []byte(fmt.Sprintf("it:pop:b:%d", stamp))

		_, err := router.Execute(ctx, "RPUSH", [][]byte{keyB}, cluster.DefaultRoute, keyB, "elem")
		Expect(err).NotTo(HaveOccurred())

		reply, err := router.BLPop(ctx, 1, keyA, keyB)
		Expect(err).NotTo(HaveOccurred())
		Expect(reply).To(HaveLen(2))
		Expect(reply[1]).To(Equal([]byte("elem")))

		_, err = router.Del(ctx, keyA, keyB)
		Expect(err).NotTo(HaveOccurred())
	})

	It("should reject transaction commands", func() {
		_, err := router.Execute(ctx, "MULTI", nil, cluster.DefaultRoute)
		Expect(err).To(HaveOccurred())
		Expect(err).To(BeAssignableToTypeOf(&cluster.UnsupportedError{}))
	})

	It("should ping every master", func() {
		topology, err := router.Topology(ctx)
		Expect(err).NotTo(HaveOccurred())
		for _, node := range topology.Masters() {
			Expect(router.PingNode(ctx, node.IPPort())).To(Succeed())
		}
	})
})
