// Copyright 2025 Mohamed Yasser. All rights reserved.

package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/YASSERRMD/nabd"
	testutil "github.com/YASSERRMD/nabd/internal/testutil"
)

var (
	objName = flag.String("object", "", "queue name")
)

const usage = `  test program for shared memory queues.
available commands:
  create {capacity} {slot_size}
  destroy
  push {values byte array}
  pop
    pops a single message and prints it
  test {expected values byte array}
    waits up to 2s for the message to arrive
  hold {ms}
    keeps the queue lock via a reservation for the given time
byte array should be passed as a continuous string of 2-symbol hex byte values like '01020A'
`

func create() error {
	if flag.NArg() != 3 {
		return fmt.Errorf("create: must provide exactly two arguments")
	}
	capacity, err := strconv.Atoi(flag.Arg(1))
	if err != nil {
		return err
	}
	slotSize, err := strconv.Atoi(flag.Arg(2))
	if err != nil {
		return err
	}
	q, err := nabd.Open(*objName, capacity, slotSize, nabd.Create|nabd.Producer)
	if err != nil {
		return err
	}
	return q.Close()
}

func destroy() error {
	if flag.NArg() != 1 {
		return fmt.Errorf("destroy: must not provide any arguments")
	}
	return nabd.Unlink(*objName)
}

func push() error {
	if flag.NArg() != 2 {
		return fmt.Errorf("push: must provide exactly one argument")
	}
	data, err := testutil.StringToBytes(flag.Arg(1))
	if err != nil {
		return err
	}
	q, err := nabd.Open(*objName, 0, 0, nabd.Producer)
	if err != nil {
		return err
	}
	defer q.Close()
	return q.Push(data)
}

func pop() error {
	if flag.NArg() != 1 {
		return fmt.Errorf("pop: must not provide any arguments")
	}
	q, err := nabd.Open(*objName, 0, 0, nabd.Consumer)
	if err != nil {
		return err
	}
	defer q.Close()
	buf := make([]byte, q.SlotSize())
	n, err := q.Pop(buf)
	if err != nil {
		return err
	}
	if n > 0 {
		fmt.Println(testutil.BytesToString(buf[:n]))
	}
	return nil
}

func test() error {
	if flag.NArg() != 2 {
		return fmt.Errorf("test: must provide exactly one argument")
	}
	expected, err := testutil.StringToBytes(flag.Arg(1))
	if err != nil {
		return err
	}
	q, err := nabd.Open(*objName, 0, 0, nabd.Consumer)
	if err != nil {
		return err
	}
	defer q.Close()
	buf := make([]byte, q.SlotSize())
	var n int
	completed := testutil.WaitForFunc(func() {
		for {
			if n, err = q.Pop(buf); !nabd.IsTemporary(err) {
				return
			}
			time.Sleep(time.Millisecond)
		}
	}, time.Second*2)
	if !completed {
		return fmt.Errorf("pop took too long to finish")
	}
	if err != nil {
		return err
	}
	if n != len(expected) {
		return fmt.Errorf("wanted %d bytes, but got %d", len(expected), n)
	}
	for i, value := range expected {
		if value != buf[i] {
			return fmt.Errorf("invalid value at %d. expected '%d', got '%d'", i, value, buf[i])
		}
	}
	return nil
}

func hold() error {
	if flag.NArg() != 2 {
		return fmt.Errorf("hold: must provide exactly one argument")
	}
	ms, err := strconv.Atoi(flag.Arg(1))
	if err != nil {
		return err
	}
	q, err := nabd.Open(*objName, 0, 0, nabd.Producer)
	if err != nil {
		return err
	}
	defer q.Close()
	view, err := q.Reserve(1)
	if err != nil {
		return err
	}
	view[0] = 0xEE
	fmt.Println("holding")
	time.Sleep(time.Duration(ms) * time.Millisecond)
	return q.Commit(1)
}

func runCommand() error {
	command := flag.Arg(0)
	switch command {
	case "create":
		return create()
	case "destroy":
		return destroy()
	case "push":
		return push()
	case "pop":
		return pop()
	case "test":
		return test()
	case "hold":
		return hold()
	default:
		return fmt.Errorf("unknown command")
	}
}

func main() {
	flag.Parse()
	if len(*objName) == 0 || flag.NArg() == 0 {
		fmt.Print(usage)
		flag.Usage()
		os.Exit(1)
	}
	if err := runCommand(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
