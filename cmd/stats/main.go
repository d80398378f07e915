// Command stats is the teacher's cmd/stats adapted to this repository's
// scope: the teacher printed per-tick bandwidth and RTT, both of which came
// from congestion control machinery this repository deliberately drops.
// What's left and worth watching live is the Counters each engine already
// keeps, so this reports those instead, once per simulated tick.
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/op/go-logging"

	"github.com/jakecoffman/reliant"
	"github.com/jakecoffman/reliant/mockcarrier"
)

var (
	iterations = flag.Int("iterations", -1, "number of ticks to run, or -1 to run until interrupted")
	lossRate   = flag.Float64("loss", 0.05, "simulated packet loss rate")
)

func main() {
	flag.Parse()
	logging.SetLevel(logging.ERROR, "reliant")

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

	client := reliant.NewChannel(clientConfig, clientCarrier)
	server := reliant.NewChannel(serverConfig, serverCarrier)
	clock.Advance(10 * time.Millisecond)

	quit := make(chan struct{})
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT)
	go func() {
		<-signals
		close(quit)
	}()

	r := rand.New(rand.NewSource(2))
	for i := 0; *iterations < 0 || i < *iterations; i++ {
		select {
		case <-quit:
			return
		default:
		}

		payload := make([]byte, r.Intn(256)+1)
		r.Read(payload)
		client.Send(payload)
		clock.Advance(100 * time.Millisecond)

		cc, sc := client.Counters(), server.Counters()
		fmt.Printf("client sent=%d recv=%d dup=%d retrans=%d exhausted=%d | server sent=%d recv=%d dup=%d retrans=%d exhausted=%d\n",
			cc.PacketsSent, cc.PacketsReceived, cc.DuplicatesSuppressed, cc.Retransmissions, cc.AttemptsExhausted,
			sc.PacketsSent, sc.PacketsReceived, sc.DuplicatesSuppressed, sc.Retransmissions, sc.AttemptsExhausted)
	}
}
