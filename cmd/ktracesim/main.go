// Command ktracesim boots the kernel over the simulated port and runs each
// of spec §8's end-to-end scenarios as a named step, printing a pass/fail
// report for each. It exists to demonstrate the core end to end — there is
// no hardware target for this module, so simport stands in for one.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/rtcore/kernel/kernel"
	"github.com/rtcore/kernel/kernel/diag"
	"github.com/rtcore/kernel/port/simport"
)

var log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
	With().Timestamp().Logger()

type scenario struct {
	name string
	run  func() error
}

func scenarios() []scenario {
	return []scenario{
		{"priority-inversion-fix", scenarioPriorityInversionFix},
		{"semaphore-wake-one", scenarioSemaphoreWakeOne},
		{"edge-event", scenarioEdgeEvent},
		{"level-event", scenarioLevelEvent},
		{"queue-back-pressure", scenarioQueueBackPressure},
		{"timeout-race", scenarioTimeoutRace},
	}
}

func main() {
	app := &cli.App{
		Name:  "ktracesim",
		Usage: "run the rtcore kernel's end-to-end scenarios against the simulated port",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "scenario",
				Value: "all",
				Usage: "scenario to run, or \"all\"",
			},
		},
		Action: func(c *cli.Context) error {
			want := c.String("scenario")
			failed := 0
			for _, sc := range scenarios() {
				if want != "all" && want != sc.name {
					continue
				}
				if err := runScenario(sc); err != nil {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d scenario(s) failed", failed)
			}
			return nil
		},
	}
	if err := app.Run(os.Args); err != nil {
		log.Error().Err(err).Msg("ktracesim run failed")
		os.Exit(1)
	}
}

func runScenario(sc scenario) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
		if err != nil {
			log.Error().Str("scenario", sc.name).Err(err).Msg("FAIL")
		} else {
			log.Info().Str("scenario", sc.name).Msg("PASS")
		}
	}()
	return sc.run()
}

// newDemoKernel builds a kernel over a fresh simport.Port with metrics and
// logging wired in, matching how a real integration would call NewKernel.
func newDemoKernel() (*kernel.Kernel, *simport.Port) {
	p := simport.New()
	k, err := kernel.NewKernel(kernel.DefaultConfig(), p, kernel.WithLogger(log))
	if err != nil {
		panic(err)
	}
	return k, p
}

// await blocks on ch for want's arrival, failing fast instead of hanging
// the demo forever if a scenario's expectations are wrong.
func await(ch <-chan string, want string) error {
	select {
	case got := <-ch:
		if got != want {
			return fmt.Errorf("expected %q, got %q", want, got)
		}
		return nil
	case <-time.After(2 * time.Second):
		return fmt.Errorf("timed out waiting for %q", want)
	}
}

func stackBuf(cfg kernel.Config) []byte {
	return make([]byte, cfg.MinStackWords*4)
}

// scenarioPriorityInversionFix is spec §8 end-to-end scenario 1: L(5) locks
// a mutex; M(3) becomes ready but must not preempt L once L inherits H(1)'s
// priority; H(1) blocks on the lock; L unlocks, hands off to H, and L's
// priority is restored.
func scenarioPriorityInversionFix() error {
	k, _ := newDemoKernel()
	cfg := kernel.DefaultConfig()
	mid, err := k.CreateMutex("x")
	if err != nil {
		return err
	}

	report := make(chan string, 8)
	_, err = k.TaskCreate(func() {
		res := k.MutexLock(mid)
		report <- fmt.Sprintf("L:lock:%d", res)

		if _, err := k.TaskCreate(func() {
			res := k.MutexLock(mid)
			report <- fmt.Sprintf("H:lock:%d", res)
			k.MutexUnlock(mid)
			select {}
		}, stackBuf(cfg), 1, "H"); err != nil {
			report <- "H:create-failed"
			return
		}
		if _, err := k.TaskCreate(func() {
			report <- "M:ran"
			select {}
		}, stackBuf(cfg), 3, "M"); err != nil {
			report <- "M:create-failed"
			return
		}

		k.TaskYield()
		lt, _ := k.LookupTaskByName("L")
		report <- fmt.Sprintf("L:boosted-prio:%d", lt.Priority())
		k.MutexUnlock(mid)
		report <- "L:unlocked"
		select {}
	}, stackBuf(cfg), 5, "L")
	if err != nil {
		return err
	}

	k.Start()
	if err := await(report, "L:lock:0"); err != nil {
		return err
	}
	if err := await(report, fmt.Sprintf("L:boosted-prio:%d", 1)); err != nil {
		return err
	}
	select {
	case msg := <-report:
		return fmt.Errorf("M preempted L before H blocked: %q", msg)
	default:
	}
	if err := await(report, "L:unlocked"); err != nil {
		return err
	}
	if err := await(report, "H:lock:0"); err != nil {
		return err
	}
	lt, ok := k.LookupTaskByName("L")
	if !ok || lt.Priority() != 5 {
		return fmt.Errorf("L's priority was not restored to 5")
	}
	return nil
}

// scenarioSemaphoreWakeOne is scenario 2: two equal-priority waiters take
// forever in order; a single give wakes only the first.
func scenarioSemaphoreWakeOne() error {
	k, p := newDemoKernel()
	cfg := kernel.DefaultConfig()
	sid, err := k.CreateSemaphore("s", 0, 3)
	if err != nil {
		return err
	}

	report := make(chan string, 4)
	spawn := func(name string) {
		k.TaskCreate(func() {
			res := k.SemaphoreTake(sid, 600_000)
			report <- fmt.Sprintf("%s:take:%d", name, res)
			select {}
		}, stackBuf(cfg), 2, name)
	}
	spawn("A")
	spawn("B")

	k.Start()
	p.RunInterrupt(func() { k.SemaphoreGive(sid) })

	if err := await(report, "A:take:0"); err != nil {
		return err
	}
	select {
	case msg := <-report:
		return fmt.Errorf("B should still be blocked: %q", msg)
	default:
	}
	if res := k.SemaphoreTake(sid, 0); res != kernel.ErrNoResource {
		return fmt.Errorf("expected available=0, SemaphoreTake returned %d", res)
	}
	return nil
}

// scenarioEdgeEvent is scenario 3: an edge-triggered event wakes a blocked
// waiter exactly once on the 0->1 transition.
func scenarioEdgeEvent() error {
	k, p := newDemoKernel()
	cfg := kernel.DefaultConfig()
	eid, err := k.CreateEvent("e", 0x0, 0xF, 0xF, 0x0)
	if err != nil {
		return err
	}

	report := make(chan string, 2)
	_, err = k.TaskCreate(func() {
		val, trig, res := k.EventWait(eid, 0x1, 600_000)
		report <- fmt.Sprintf("waiter:%d:%d:%d", val, trig, res)
		select {}
	}, stackBuf(cfg), 4, "waiter")
	if err != nil {
		return err
	}

	k.Start()
	p.RunInterrupt(func() { k.EventSet(eid, 0x1, 0, 0) })
	return await(report, fmt.Sprintf("waiter:%d:%d:%d", 0x1, 0x1, kernel.OK))
}

// scenarioLevelEvent is scenario 4: with mode=0 (level), setting the bit
// makes an immediate wait succeed; clearing it makes a subsequent wait
// block (demonstrated here as "does not fire within a grace period" since
// nothing ever sets it again in this scenario).
func scenarioLevelEvent() error {
	k, _ := newDemoKernel()
	cfg := kernel.DefaultConfig()
	eid, err := k.CreateEvent("e", 0x0, 0x0, 0xF, 0x0)
	if err != nil {
		return err
	}

	if res := k.EventSet(eid, 0x1, 0, 0); res != kernel.OK {
		return fmt.Errorf("set failed: %d", res)
	}
	val, trig, res := k.EventWait(eid, 0x1, 0)
	if res != kernel.OK || val != 0x1 || trig != 0x1 {
		return fmt.Errorf("expected immediate OK/0x1/0x1, got %d/%x/%x", res, val, trig)
	}

	if res := k.EventSet(eid, 0, 0x1, 0); res != kernel.OK {
		return fmt.Errorf("clear failed: %d", res)
	}

	report := make(chan string, 1)
	_, err = k.TaskCreate(func() {
		_, _, res := k.EventWait(eid, 0x1, 600_000)
		report <- fmt.Sprintf("waiter:woke:%d", res)
		select {}
	}, stackBuf(cfg), 4, "waiter")
	if err != nil {
		return err
	}
	k.Start()

	select {
	case msg := <-report:
		return fmt.Errorf("waiter should still be blocked on a cleared level: %q", msg)
	case <-time.After(100 * time.Millisecond):
		return nil
	}
}

// scenarioQueueBackPressure is scenario 5: a full queue blocks a sender;
// draining one element wakes it and its payload lands in the freed slot.
func scenarioQueueBackPressure() error {
	k, p := newDemoKernel()
	cfg := kernel.DefaultConfig()
	qid, err := k.CreateQueue("q", 4, 2)
	if err != nil {
		return err
	}
	if res := k.QueueSend(qid, []byte{1, 0, 0, 0}, 0); res != kernel.OK {
		return fmt.Errorf("send 1 failed: %d", res)
	}
	if res := k.QueueSend(qid, []byte{2, 0, 0, 0}, 0); res != kernel.OK {
		return fmt.Errorf("send 2 failed: %d", res)
	}

	report := make(chan string, 1)
	_, err = k.TaskCreate(func() {
		res := k.QueueSend(qid, []byte{3, 0, 0, 0}, 10)
		report <- fmt.Sprintf("sender:send:%d", res)
		select {}
	}, stackBuf(cfg), 3, "sender")
	if err != nil {
		return err
	}
	k.Start()

	buf := make([]byte, 4)
	p.RunInterrupt(func() {
		if res := k.QueueReceive(qid, buf, 0); res != kernel.OK {
			panic(fmt.Sprintf("receive failed: %d", res))
		}
	})
	if buf[0] != 1 {
		return fmt.Errorf("expected to receive {1,...}, got %v", buf)
	}
	return await(report, fmt.Sprintf("sender:send:%d", kernel.OK))
}

// scenarioTimeoutRace is scenario 6: a 5ms-timeout take races a give that
// lands on the same tick. This demo fires the timeout first, deterministically
// exercising the TIMEOUT branch of the documented race (spec §8's invariant
// only requires exactly one outcome, not which one wins).
func scenarioTimeoutRace() error {
	k, p := newDemoKernel()
	cfg := kernel.DefaultConfig()
	sid, err := k.CreateSemaphore("s", 0, 1)
	if err != nil {
		return err
	}

	report := make(chan string, 1)
	_, err = k.TaskCreate(func() {
		res := k.SemaphoreTake(sid, 5)
		report <- fmt.Sprintf("taker:%d", res)
		select {}
	}, stackBuf(cfg), 5, "taker")
	if err != nil {
		return err
	}
	k.Start()

	p.SetClock(0)
	p.RunInterrupt(func() { k.Tick(5) })
	if err := await(report, fmt.Sprintf("taker:%d", kernel.ErrTimeout)); err != nil {
		return err
	}

	var giveRes kernel.Result
	p.RunInterrupt(func() { giveRes = k.SemaphoreGive(sid) })
	if giveRes != kernel.OK {
		return fmt.Errorf("give after timeout should succeed (no waiter left): %d", giveRes)
	}
	if res := k.SemaphoreTake(sid, 0); res != kernel.OK {
		return fmt.Errorf("available should be 1 after the timeout+give race resolved to TIMEOUT: %d", res)
	}

	// With no locked mutexes at this point, the wait-for graph must be
	// empty: this also exercises kernel/diag end to end.
	g := diag.BuildWaitForGraph(k.WaitForEdges())
	if g.HasDeadlock() {
		return fmt.Errorf("unexpected deadlock reported")
	}
	return nil
}
