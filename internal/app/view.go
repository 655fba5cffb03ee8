package app

import (
	"errors"
	"fmt"

	"yashubustudio/bioscan/bioscan"
	"yashubustudio/bioscan/report"
)

const allReceptorsOption = "TODOS OS RECEPTORES"

// selectionOptions lists the choices of the receptor picker.
func selectionOptions(names []string) []string {
	out := make([]string, 0, len(names)+1)
	out = append(out, allReceptorsOption)
	return append(out, names...)
}

func selectionFor(option string) bioscan.Selection {
	if option == "" || option == allReceptorsOption {
		return bioscan.SelectAll()
	}
	return bioscan.SelectReceptor(option)
}

// resultRows renders scores for the results table.
func resultRows(res *bioscan.Result) [][]string {
	if res == nil {
		return nil
	}
	return report.Rows(res.Scores)
}

// statusText is the status line for an analysis outcome. A nil result means
// the analysis is still running.
func statusText(res *bioscan.Result, err error) string {
	switch {
	case err != nil:
		return "Falha na análise"
	case res == nil:
		return "Executando predição por redes neurais..."
	default:
		return fmt.Sprintf("Análise concluída! %d receptores em %s", len(res.Scores), elapsedLabel(res.Elapsed))
	}
}

// userMessage turns an analysis error into the text shown in dialogs.
func userMessage(err error) string {
	var ie *bioscan.InferenceError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, bioscan.ErrNotFound):
		return "Receptor não encontrado no banco."
	case errors.Is(err, bioscan.ErrValidation):
		return "Sequência inválida ou muito curta."
	case errors.Is(err, bioscan.ErrBusy):
		return "Uma análise já está em andamento."
	case errors.Is(err, bioscan.ErrNotReady):
		return "O modelo ainda está carregando."
	case errors.Is(err, bioscan.ErrLoad):
		return fmt.Sprintf("Falha ao carregar o modelo: %v", err)
	case errors.As(err, &ie):
		return fmt.Sprintf("Falha na inferência (%s): %v", ie.Target, ie.Err)
	default:
		return err.Error()
	}
}
