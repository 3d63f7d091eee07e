// Package main implements an interactive local analysis shell: a game
// session driven entirely in-process, without the API server.
package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"chesskit/internal/board"
	"chesskit/internal/core"
	"chesskit/internal/position"
	"chesskit/internal/session"
	"chesskit/internal/tree"
)

func main() {
	logger, err := newQuietLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	engine := position.NewEngine(sugar)
	coord := session.New(sugar, engine, "")

	// Announce committed moves and navigation as they happen
	sub := coord.Events().Subscribe(func(ev core.Event) {
		switch e := ev.(type) {
		case core.MoveMade:
			marker := ""
			if e.IsVariation {
				marker = " (variation)"
			}
			fmt.Printf("  %s [%s]%s\n", e.SANMove, e.UCIMove, marker)
			if e.Status.IsGameOver {
				fmt.Printf("  game over: %s\n", describeOutcome(e.Status))
			} else if e.Status.IsCheck {
				fmt.Println("  check")
			}
		case core.PgnNavigated:
			fmt.Printf("  at ply %d (path %q)\n", e.Ply, e.CurrentNodePath)
		}
	})
	defer sub.Unsubscribe()

	// Prompt for a piece when a pawn reaches the far rank
	coord.Promotion().Observe(func(origin, dest string, color core.Color) {
		fmt.Printf("  promotion on %s: choose with 'promote q|r|b|n' or 'cancel'\n", dest)
	})

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "chesskit> ",
		HistoryFile:     ".chesskit_history",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	defer rl.Close()

	fmt.Println("chesskit analysis shell")
	fmt.Println("Type 'help' for commands")
	fmt.Println()
	printBoard(coord)

	for {
		rl.SetPrompt(buildPrompt(coord))

		line, err := rl.Readline()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" || line == "x" {
			break
		}

		execute(coord, line)
	}
}

func newQuietLogger() (*zap.Logger, error) {
	zc := zap.NewDevelopmentConfig()
	zc.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	return zc.Build()
}

func buildPrompt(coord *session.Coordinator) string {
	st := coord.Status()
	turn := "White"
	if st.Turn == core.ColorBlack.String() {
		turn = "Black"
	}
	if st.IsGameOver {
		return fmt.Sprintf("chesskit [%s]> ", string(coord.Result()))
	}
	return fmt.Sprintf("chesskit [ply %d, %s]> ", coord.Ply(), turn)
}

func execute(coord *session.Coordinator, line string) {
	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "help", "h", "?":
		printHelp()

	case "new":
		fen := ""
		if len(args) > 0 {
			fen = strings.Join(args, " ")
		}
		coord.Reset(fen)
		printBoard(coord)

	case "move", "m":
		if len(args) != 2 {
			fmt.Println("usage: move <from> <to>  (e.g. move e2 e4)")
			return
		}
		reportOutcome(coord, coord.AttemptMove(args[0], args[1]))

	case "uci":
		if len(args) != 1 {
			fmt.Println("usage: uci <move>  (e.g. uci e2e4 or uci a7a8q)")
			return
		}
		reportOutcome(coord, coord.ApplySystemMove(args[0]))

	case "promote":
		if len(args) != 1 {
			fmt.Println("usage: promote q|r|b|n")
			return
		}
		role, err := core.ParsePromotionRole(args[0])
		if err != nil {
			fmt.Printf("error: %v\n", err)
			return
		}
		out, err := coord.ChoosePromotion(role)
		if err != nil {
			fmt.Printf("error: %v\n", err)
			return
		}
		reportOutcome(coord, out)

	case "cancel":
		if _, err := coord.CancelPromotion(); err != nil {
			fmt.Printf("error: %v\n", err)
			return
		}
		fmt.Println("promotion cancelled")

	case "undo", "u":
		if err := coord.UndoLastMove(); err != nil {
			fmt.Printf("error: %v\n", err)
			return
		}
		printBoard(coord)

	case "back", "b":
		if !coord.NavigateBackward() {
			fmt.Println("already at the start")
			return
		}
		printBoard(coord)

	case "next", "n":
		variation := 0
		if len(args) == 1 {
			v, err := strconv.Atoi(args[0])
			if err != nil || v < 0 {
				fmt.Println("usage: next [variation]")
				return
			}
			variation = v
		}
		if !coord.NavigateForward(variation) {
			fmt.Println("no continuation there")
			return
		}
		printBoard(coord)

	case "goto":
		if len(args) != 1 {
			fmt.Println("usage: goto <path|ply>  (e.g. goto 0.1.0 or goto 4)")
			return
		}
		var moved bool
		if ply, err := strconv.Atoi(args[0]); err == nil {
			moved = coord.NavigateToPly(ply)
		} else {
			path, perr := tree.ParsePath(args[0])
			if perr != nil {
				fmt.Printf("error: %v\n", perr)
				return
			}
			moved = coord.NavigateToPath(path)
		}
		if !moved {
			fmt.Println("target not reachable")
			return
		}
		printBoard(coord)

	case "start":
		coord.NavigateToStart()
		printBoard(coord)

	case "end":
		coord.NavigateToEnd()
		printBoard(coord)

	case "lines":
		siblings := coord.Siblings()
		if len(siblings) == 0 {
			fmt.Println("at the starting position")
			return
		}
		for i, sib := range siblings {
			marker := " "
			if i == 0 {
				marker = "*"
			}
			fmt.Printf("  %s [%d] %s (%s)\n", marker, sib.ID, sib.SAN, sib.UCI)
		}

	case "mainline":
		if len(args) != 1 {
			fmt.Println("usage: mainline <nodeId>  (see 'lines')")
			return
		}
		id, err := strconv.Atoi(args[0])
		if err != nil {
			fmt.Println("usage: mainline <nodeId>")
			return
		}
		if err := coord.PromoteVariation(tree.NodeID(id)); err != nil {
			fmt.Printf("error: %v\n", err)
			return
		}
		fmt.Println("line promoted to mainline")

	case "result":
		if len(args) != 1 {
			fmt.Println("usage: result 1-0|0-1|1/2-1/2|*")
			return
		}
		result, err := core.ParseResult(args[0])
		if err != nil {
			fmt.Printf("error: %v\n", err)
			return
		}
		coord.SetResult(result)
		fmt.Printf("result set to %s\n", result)

	case "pgn":
		pgn := coord.PGN(tree.PGNOptions{ShowResult: true, ShowVariations: true})
		if pgn == "" {
			fmt.Println("no moves yet")
			return
		}
		fmt.Println(pgn)

	case "fen":
		fmt.Println(coord.FEN())

	case "board", "d":
		printBoard(coord)

	case "status", "s":
		printStatus(coord)

	case "analysis":
		if len(args) != 1 || (args[0] != "on" && args[0] != "off") {
			fmt.Println("usage: analysis on|off")
			return
		}
		coord.SetFreeAnalysis(args[0] == "on")
		fmt.Printf("free analysis %s\n", args[0])

	default:
		fmt.Printf("unknown command %q, type 'help'\n", cmd)
	}
}

func reportOutcome(coord *session.Coordinator, out session.MoveOutcome) {
	switch {
	case out.Committed:
		printBoard(coord)
	case out.AwaitingPromotion:
		// The promotion observer already printed the prompt
	case out.PromotionCancelled:
		fmt.Println("promotion cancelled")
	default:
		if coord.State() == session.StateAwaitingPromotionChoice {
			fmt.Println("a promotion choice is pending: 'promote q|r|b|n' or 'cancel'")
			return
		}
		if st := coord.Status(); st.IsGameOver && !coord.FreeAnalysis() {
			fmt.Printf("game is over (%s); 'analysis on' to keep exploring\n", describeOutcome(st))
			return
		}
		fmt.Println("illegal move")
	}
}

func printBoard(coord *session.Coordinator) {
	b, err := board.ParseFEN(coord.FEN())
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	fmt.Println(b.ToASCII())
}

func printStatus(coord *session.Coordinator) {
	st := coord.Status()
	fmt.Printf("fen:    %s\n", coord.FEN())
	fmt.Printf("ply:    %d (path %q)\n", coord.Ply(), coord.Path())
	fmt.Printf("turn:   %s\n", st.Turn)
	fmt.Printf("check:  %v\n", st.IsCheck)
	fmt.Printf("result: %s\n", coord.Result())
	if st.IsGameOver {
		fmt.Printf("over:   %s\n", describeOutcome(st))
	}
}

func describeOutcome(st core.GameStatus) string {
	if st.Outcome == nil {
		return "unknown"
	}
	if st.Outcome.Winner != "" {
		return fmt.Sprintf("%s, %s wins", st.Outcome.Reason, st.Outcome.Winner)
	}
	return fmt.Sprintf("draw, %s", st.Outcome.Reason)
}

func printHelp() {
	fmt.Println(`Commands:
  new [fen]           start a fresh game, optionally from a FEN
  move <from> <to>    play a move (move e2 e4)
  uci <move>          play a full UCI move (uci a7a8q)
  promote q|r|b|n     resolve a pending promotion
  cancel              abandon a pending promotion
  undo                remove the current move and its continuations
  back / next [n]     step through the current line (n picks a variation)
  goto <path|ply>     jump to a tree path (0.1.0) or mainline ply
  start / end         jump to the root / end of the current line
  lines               list variations at the current move
  mainline <nodeId>   promote a variation to the mainline
  result <token>      record a result (1-0, 0-1, 1/2-1/2, *)
  pgn                 export the tree as PGN
  fen / board         show the position
  status              show session details
  analysis on|off     allow moves after the game has ended
  exit                leave the shell`)
}
