// Command mtl-loadgen is a minimal demo traffic generator. The full
// demo generator (original_source/message_generator.c,
// original_source/demo_client.c) is explicitly out of scope per
// spec.md §1; this stub exists only so the client library has a runnable
// exerciser, not as a feature in its own right.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/jabolina/mtl/pkg/mtl/client"
	"github.com/jabolina/mtl/pkg/mtl/definition"
	"github.com/jabolina/mtl/pkg/mtl/frame"
)

func main() {
	host := flag.String("host", "127.0.0.1", "broker hostname")
	port := flag.Int("port", 9000, "broker port")
	localPort := flag.Int("local-port", 48000, "local advertised port")
	destPort := flag.Int("dest-port", 48001, "destination advertised port")
	count := flag.Int("count", 10, "messages to send")
	flag.Parse()

	log := definition.NewLogrusLogger()
	svc := client.NewService(log)
	if err := svc.Connect(client.ConnectOptions{
		Hostname:   *host,
		ServerPort: *port,
		LocalPort:  *localPort,
	}); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	svc.SetListener(func(src frame.Addr, data []byte) {
		log.Infof("received %q from %s", data, src)
	}, func(err error, original frame.Frame) {
		log.Warnf("delivery failed for count=%d: %v", original.Count, err)
	})

	svc.Start(context.Background())

	dest := frame.Addr{IP: [4]byte{127, 0, 0, 1}, Port: uint16(*destPort)}
	for i := 0; i < *count; i++ {
		svc.Schedule(dest, []byte(fmt.Sprintf("hello-%d", i)))
	}

	time.Sleep(time.Second)
	svc.Stop()
}
