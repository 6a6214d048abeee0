package kiosk

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"academy_backend/internal/feature/attendance/domain/entity"
	"academy_backend/internal/feature/attendance/usecase"
)

// Acquire は Workflow に撮影画像を用意します（カメラ撮影またはファイル読み込み）。
type Acquire func(ctx context.Context, w *usecase.Workflow) error

// ErrAborted はオペレーターが確定を取り消した場合に返されます。
var ErrAborted = errors.New("aborted by operator")

// Runner は1回分の出席登録を端末上で実行します。
type Runner struct {
	in  *bufio.Reader
	out io.Writer
}

// NewRunner はRunnerの新しいインスタンスを生成します。
func NewRunner(in io.Reader, out io.Writer) *Runner {
	return &Runner{in: bufio.NewReader(in), out: out}
}

// Run は撮影 → 認識 → 分類 → 確定 を順に実行し、作成された出席記録を返します。
// 顔が検出されなかった場合は (nil, nil) を返します。
func (r *Runner) Run(ctx context.Context, w *usecase.Workflow, acquire Acquire) (*entity.AttendanceRecord, error) {
	if err := acquire(ctx, w); err != nil {
		return nil, fmt.Errorf("capture: %w", err)
	}

	err := withSpinner(r.out, "Reconhecendo rostos", func() error {
		return w.Recognize(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("recognize: %w", err)
	}

	state := w.Snapshot()
	if state.NoFacesDetected {
		r.printf("Nenhum rosto detectado. Tente outra foto.\n")
		return nil, nil
	}
	if state.Shape == usecase.ShapeLegacy {
		r.printf("Aviso: o serviço não retornou detecções por rosto.\n")
	}

	for i, e := range state.Entries {
		r.printEntry(i+1, e)
		if e.Decision != entity.DecisionPending {
			continue
		}
		if err := r.decide(w, e.Face.FaceID); err != nil {
			return nil, err
		}
	}

	state = w.Snapshot()
	c := state.Counts
	r.printf("\nReconhecidos: %d  Pendentes: %d  Visitantes: %d  Experimentais: %d  Ignorados: %d\n",
		c.Recognized, c.Pending, c.Visitors, c.Experimental, c.Ignored)
	if !state.CanFinalize {
		return nil, usecase.ErrUnresolvedFaces
	}

	answer, err := r.readLine("Confirmar presença? [s/N] ")
	if err != nil {
		return nil, err
	}
	if !ParseYes(answer) {
		return nil, ErrAborted
	}

	rec, err := r.commit(ctx, w)
	if err != nil {
		return nil, err
	}
	r.printf("Presença registrada (%s): %d alunos, %d visitantes, %d experimentais\n",
		rec.ID, len(rec.Students), rec.VisitorCount, rec.ExperimentalCount)
	return rec, nil
}

// commit は出席を確定します。保存に失敗した場合は分類を保持したまま再試行を尋ねます。
func (r *Runner) commit(ctx context.Context, w *usecase.Workflow) (*entity.AttendanceRecord, error) {
	for {
		rec, err := w.Commit(ctx)
		if err == nil {
			return rec, nil
		}
		if !errors.Is(err, usecase.ErrCommit) {
			return nil, fmt.Errorf("commit: %w", err)
		}
		r.printf("Falha ao registrar presença: %v\n", err)
		answer, rerr := r.readLine("Tentar novamente? [s/N] ")
		if rerr != nil || !ParseYes(answer) {
			return nil, fmt.Errorf("commit: %w", err)
		}
	}
}

// decide は未一致の顔について分類が決まるまで入力を求めます。
func (r *Runner) decide(w *usecase.Workflow, faceID string) error {
	for {
		answer, err := r.readLine("  [v]isitante / [e]xperimental / [i]gnorar: ")
		if err != nil {
			return err
		}
		d, err := ParseChoice(answer)
		if err != nil {
			r.printf("  Opção inválida: %q\n", strings.TrimSpace(answer))
			continue
		}
		if d == "" {
			r.printf("  Todos os rostos precisam ser classificados.\n")
			continue
		}
		return w.Decide(faceID, d)
	}
}

func (r *Runner) printEntry(n int, e entity.FaceReconciliationEntry) {
	switch {
	case e.Decision == entity.DecisionRecognized && e.Face.SuggestedMatch != nil:
		name := e.Face.SuggestedMatch.StudentName
		if e.Student != nil && e.Student.Name != "" {
			name = e.Student.Name
		}
		r.printf("%d. %s (%.0f%%)\n", n, name, e.Face.SuggestedMatch.Confidence)
	case e.Face.SuggestedMatch != nil:
		r.printf("%d. Não reconhecido (talvez %s, %.0f%%)\n", n, e.Face.SuggestedMatch.StudentName, e.Face.SuggestedMatch.Confidence)
	default:
		r.printf("%d. Não reconhecido\n", n)
	}
}

// Pause は Enter が押されるまで待ちます。
func (r *Runner) Pause(prompt string) error {
	_, err := r.readLine(prompt)
	return err
}

// readLine は1行読み込みます。入力が尽きた場合は io.ErrUnexpectedEOF を返します。
func (r *Runner) readLine(prompt string) (string, error) {
	r.printf("%s", prompt)
	line, err := r.in.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return line, nil
		}
		if errors.Is(err, io.EOF) {
			return "", io.ErrUnexpectedEOF
		}
		return "", err
	}
	return line, nil
}

func (r *Runner) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(r.out, format, args...)
}
