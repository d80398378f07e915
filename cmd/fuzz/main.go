// Command fuzz is the teacher's cmd/fuzz generalized from raw packet bytes
// to the whole Channel: it feeds an open Channel a stream of random garbage
// through its carrier's receive handler and asserts the process never
// panics, complementing the native FuzzDecodePacket unit fuzzer (which only
// exercises the codec, not the state machine above it).
package main

import (
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/op/go-logging"

	"github.com/jakecoffman/reliant"
	"github.com/jakecoffman/reliant/mockcarrier"
)

const maxGarbageBytes = 16 * 1024

func main() {
	logging.SetLevel(logging.CRITICAL, "reliant")

	numIterations := -1
	if len(os.Args) > 1 {
		n, err := strconv.Atoi(os.Args[1])
		if err != nil {
			fmt.Fprintln(os.Stderr, "argument must be an integer iteration count")
			os.Exit(1)
		}
		numIterations = n
	}

	clock := reliant.NewManualClock(time.Unix(0, 0))
	carrier := mockcarrier.New(mockcarrier.Config{}, clock)
	config := reliant.NewDefaultConfig()
	config.Clock = clock
	channel := reliant.NewChannel(config, carrier)
	channel.OnOpen = func() {}
	channel.OnMessage = func([]byte) {}
	channel.OnError = func(error) {}
	channel.OnClose = func(reliant.CloseEvent) {}
	// Complete the handshake by hand so the garbage reaches an OPEN channel.
	carrier.Deliver(reliant.EncodePacket(0, reliant.FlagSyn, nil))

	r := rand.New(rand.NewSource(1))

	quit := make(chan struct{})
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT)
	go func() {
		<-signals
		close(quit)
	}()

	for i := 0; numIterations < 0 || i < numIterations; i++ {
		select {
		case <-quit:
			return
		default:
		}
		fmt.Print(".")
		garbage := make([]byte, r.Intn(maxGarbageBytes))
		r.Read(garbage)
		carrier.Deliver(garbage)
		clock.Advance(10 * time.Millisecond)
	}
	fmt.Println("\nno panic across", numIterations, "iterations")
}
