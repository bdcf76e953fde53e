package main

import (
	"flag"
	"fmt"
	"math/rand"
	"net"
	"time"
)

// Feeds the tcp listener with AEPL-style records, for poking at the
// pipeline without a real tracker.
func main() {
	addr := flag.String("addr", "127.0.0.1:5001", "gps listener address")
	imei := flag.String("imei", "860738079276675", "device imei")
	interval := flag.Duration("interval", 2*time.Second, "send interval")
	flag.Parse()

	c, err := net.Dial("tcp", *addr)
	if err != nil {
		panic(err.Error())
	}
	defer c.Close()

	lat := 18.465794
	lng := 73.782791
	for {
		lat += (rand.Float64() - 0.5) / 1000
		lng += (rand.Float64() - 0.5) / 1000
		msg := fmt.Sprintf("$1,AEPL,0.0.1,NR,2,H,%s,X,%.6f,N,%.6f,E,X\n", *imei, lat, lng)
		_, err = c.Write([]byte(msg))
		if err != nil {
			panic(err.Error())
		}
		fmt.Print(msg)
		time.Sleep(*interval)
	}
}
