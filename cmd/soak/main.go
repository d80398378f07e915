// Command soak is the teacher's cmd/soak generalized to the channel level:
// it runs a client and server Channel over a lossy mockcarrier link for many
// iterations, sending a message each tick and counting the messages sent and
// delivered, then reports those totals and both sides' Counters. Delivered
// message contents are not compared with what was sent. Profiling flags are
// kept from the original.
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"runtime/pprof"
	"syscall"
	"time"

	"github.com/op/go-logging"

	"github.com/jakecoffman/reliant"
	"github.com/jakecoffman/reliant/mockcarrier"
)

var (
	cpuprofile = flag.String("cpuprofile", "", "write cpu profile to file")
	iterations = flag.Int("iterations", -1, "number of iterations to run, or -1 to run until interrupted")
	lossRate   = flag.Float64("loss", 0.05, "simulated packet loss rate")
	loglevel   = flag.Int("loglevel", int(logging.ERROR), "log level (5 for debug)")
)

type soak struct {
	client, server *reliant.Channel
	clock          *reliant.ManualClock
	sent, received int
	rand           *rand.Rand
}

func main() {
	flag.Parse()
	logging.SetLevel(logging.Level(*loglevel), "reliant")

	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			log.Fatal(err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			log.Fatal(err)
		}
		defer pprof.StopCPUProfile()
	}

	s := newSoak()

	quit := make(chan struct{})
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT)
	go func() {
		<-signals
		close(quit)
	}()

	for i := 0; *iterations < 0 || i < *iterations; i++ {
		select {
		case <-quit:
			s.report()
			return
		default:
		}
		s.iteration()
	}
	s.report()
}

func newSoak() *soak {
	clock := reliant.NewManualClock(time.Unix(0, 0))
	lossy := mockcarrier.Config{PacketLoss: *lossRate, Rand: rand.New(rand.NewSource(1))}

	clientCarrier := mockcarrier.New(lossy, clock)
	serverCarrier := mockcarrier.New(lossy, clock)
	mockcarrier.Connect(clientCarrier, serverCarrier)

	clientConfig := reliant.NewDefaultConfig()
	clientConfig.Name = "client"
	clientConfig.Clock = clock
	serverConfig := reliant.NewDefaultConfig()
	serverConfig.Name = "server"
	serverConfig.Clock = clock

	s := &soak{
		clock: clock,
		rand:  rand.New(rand.NewSource(2)),
	}
	s.client = reliant.NewChannel(clientConfig, clientCarrier)
	s.server = reliant.NewChannel(serverConfig, serverCarrier)
	s.server.OnMessage = func(data []byte) { s.received++ }
	s.clock.Advance(10 * time.Millisecond)
	return s
}

func (s *soak) iteration() {
	payload := generatePayload(s.rand, s.sent)
	if err := s.client.Send(payload); err == nil {
		s.sent++
	}
	s.clock.Advance(100 * time.Millisecond)
}

func (s *soak) report() {
	fmt.Printf("sent=%d received=%d client=%+v server=%+v\n",
		s.sent, s.received, s.client.Counters(), s.server.Counters())
}

func generatePayload(r *rand.Rand, sequence int) []byte {
	n := r.Intn(1023) + 1
	payload := make([]byte, n)
	for i := range payload {
		payload[i] = byte((i + sequence) % 256)
	}
	return payload
}
