package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/data/binding"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"yashubustudio/bioscan/bioscan"
	"yashubustudio/bioscan/report"
)

const (
	inputPlaceholder = "INSIRA A SEQUÊNCIA DE AMINOÁCIDOS DA PROTEÍNA VIRAL AQUI..."
	fyneAppID        = "yashubustudio.bioscan"
)

type uiState struct {
	ctx      context.Context
	analyzer *bioscan.Analyzer
	loader   bioscan.Loader
	logger   *slog.Logger
	logs     *logBuffer
	cfg      bioscan.Config
	cfgPath  string

	w          fyne.Window
	content    fyne.CanvasObject
	overlay    *fyne.Container
	input      *widget.Entry
	receptors  *widget.Select
	statusBind binding.String
	logBind    binding.String
	progress   *widget.ProgressBarInfinite
	resTbl     *widget.Table

	resultMu sync.Mutex
	result   *bioscan.Result
	rows     [][]string

	analyzeBtn *widget.Button
	loadBtn    *widget.Button
	pdfBtn     *widget.Button
	csvBtn     *widget.Button
	resetBtn   *widget.Button

	nameEntry    *widget.Entry
	seqEntry     *widget.Entry
	registryList *widget.List
	names        []string
}

func buildUI(a fyne.App, analyzer *bioscan.Analyzer, embedder bioscan.Embedder, cfg bioscan.Config, cfgPath string, logs *logBuffer, logger *slog.Logger) *uiState {
	u := &uiState{analyzer: analyzer, logs: logs, logger: logger, cfg: cfg, cfgPath: cfgPath}
	if l, ok := embedder.(bioscan.Loader); ok {
		u.loader = l
	}
	u.w = a.NewWindow("BioScan AI")

	u.statusBind = binding.NewString()
	u.logBind = binding.NewString()

	tabs := container.NewAppTabs(
		container.NewTabItemWithIcon("Análise Viral", theme.SearchIcon(), u.buildAnalysisTab()),
		container.NewTabItemWithIcon("Gerenciar Banco", theme.StorageIcon(), u.buildRegistryTab()),
		container.NewTabItemWithIcon("Log", theme.ListIcon(), u.buildLogTab()),
	)
	u.content = tabs

	loadingLabel := widget.NewLabelWithStyle("Carregando modelo de linguagem de proteínas...", fyne.TextAlignCenter, fyne.TextStyle{Bold: true})
	loadingBar := widget.NewProgressBarInfinite()
	u.overlay = container.NewCenter(container.NewVBox(loadingLabel, loadingBar))

	u.w.SetContent(container.NewStack(u.content, u.overlay))
	u.w.Resize(fyne.NewSize(1000, 760))
	u.refreshRegistry()
	u.setResult(nil)
	return u
}

func (u *uiState) buildAnalysisTab() fyne.CanvasObject {
	u.input = widget.NewMultiLineEntry()
	u.input.SetPlaceHolder(inputPlaceholder)
	u.input.Wrapping = fyne.TextWrapBreak
	u.input.SetMinRowsVisible(6)

	u.receptors = widget.NewSelect(nil, nil)
	u.receptors.PlaceHolder = allReceptorsOption

	u.loadBtn = widget.NewButtonWithIcon("CARREGAR FASTA", theme.FolderOpenIcon(), func() { u.onLoadQuery() })
	u.pdfBtn = widget.NewButtonWithIcon("SALVAR PDF", theme.DocumentSaveIcon(), func() { u.onExport(report.FormatPDF) })
	u.csvBtn = widget.NewButtonWithIcon("SALVAR CSV", theme.DocumentSaveIcon(), func() { u.onExport(report.FormatCSV) })
	u.analyzeBtn = widget.NewButtonWithIcon("ANALISAR", theme.ConfirmIcon(), func() { u.onAnalyze() })
	u.analyzeBtn.Importance = widget.HighImportance
	u.resetBtn = widget.NewButtonWithIcon("NOVA ANÁLISE", theme.ContentClearIcon(), func() { u.onReset() })
	settingsBtn := widget.NewButtonWithIcon("", theme.SettingsIcon(), func() { u.openSettings() })

	u.progress = widget.NewProgressBarInfinite()
	u.progress.Hide()
	status := widget.NewLabelWithData(u.statusBind)
	status.TextStyle = fyne.TextStyle{Italic: true}

	u.resTbl = widget.NewTable(
		func() (int, int) {
			u.resultMu.Lock()
			defer u.resultMu.Unlock()
			return len(u.rows) + 1, 2
		},
		func() fyne.CanvasObject {
			return widget.NewLabel("")
		},
		func(id widget.TableCellID, obj fyne.CanvasObject) {
			lbl := obj.(*widget.Label)
			if id.Row == 0 {
				lbl.TextStyle = fyne.TextStyle{Bold: true}
				lbl.Alignment = fyne.TextAlignCenter
				if id.Col == 0 {
					lbl.SetText("RECEPTOR ALVO")
				} else {
					lbl.SetText("AFINIDADE (%)")
				}
				return
			}
			lbl.TextStyle = fyne.TextStyle{Monospace: true, Bold: true}
			lbl.Alignment = fyne.TextAlignLeading
			if id.Col == 1 {
				lbl.Alignment = fyne.TextAlignTrailing
			}
			u.resultMu.Lock()
			defer u.resultMu.Unlock()
			row := id.Row - 1
			if row >= len(u.rows) || id.Col >= len(u.rows[row]) {
				lbl.SetText("")
				return
			}
			lbl.SetText(u.rows[row][id.Col])
		},
	)
	u.resTbl.SetColumnWidth(0, 520)
	u.resTbl.SetColumnWidth(1, 200)

	toolbar := container.NewHBox(u.loadBtn, u.pdfBtn, u.csvBtn, layout.NewSpacer(), u.receptors, u.analyzeBtn, u.resetBtn, settingsBtn)
	title := widget.NewLabelWithStyle("BioScan AI: Predição Viral", fyne.TextAlignCenter, fyne.TextStyle{Bold: true})
	top := container.NewVBox(toolbar, title, u.input, u.progress, status, widget.NewSeparator())
	return container.NewBorder(top, nil, nil, nil, u.resTbl)
}

func (u *uiState) buildRegistryTab() fyne.CanvasObject {
	u.nameEntry = widget.NewEntry()
	u.nameEntry.SetPlaceHolder("Ex: Receptor SARS-CoV-2")
	u.seqEntry = widget.NewMultiLineEntry()
	u.seqEntry.SetPlaceHolder("Sequência de aminoácidos ou FASTA")
	u.seqEntry.Wrapping = fyne.TextWrapBreak
	u.seqEntry.SetMinRowsVisible(10)

	saveBtn := widget.NewButtonWithIcon("SALVAR NO SISTEMA", theme.ContentAddIcon(), func() { u.onAddReceptor() })
	saveBtn.Importance = widget.HighImportance
	importBtn := widget.NewButtonWithIcon("IMPORTAR FASTA", theme.FolderOpenIcon(), func() { u.onImportReceptors() })

	left := container.NewVBox(
		widget.NewLabelWithStyle("CADASTRAR RECEPTOR", fyne.TextAlignCenter, fyne.TextStyle{Bold: true}),
		u.nameEntry,
		u.seqEntry,
		saveBtn,
		widget.NewSeparator(),
		importBtn,
	)

	u.registryList = widget.NewList(
		func() int { return len(u.names) },
		func() fyne.CanvasObject { return widget.NewLabel("") },
		func(id widget.ListItemID, obj fyne.CanvasObject) {
			if id < len(u.names) {
				obj.(*widget.Label).SetText("• " + u.names[id])
			}
		},
	)
	right := container.NewBorder(
		widget.NewLabelWithStyle("BIBLIOTECA ATIVA", fyne.TextAlignCenter, fyne.TextStyle{Bold: true}),
		nil, nil, nil, u.registryList,
	)
	split := container.NewHSplit(left, right)
	split.Offset = 0.35
	return split
}

func (u *uiState) buildLogTab() fyne.CanvasObject {
	logView := widget.NewEntryWithData(u.logBind)
	logView.MultiLine = true
	logView.Wrapping = fyne.TextWrapWord
	logView.TextStyle = fyne.TextStyle{Monospace: true}
	logView.Disable()
	return container.NewStack(logView)
}

// start launches the model load, the status subscription and the log updater.
// Everything it starts stops when ctx ends.
func (u *uiState) start(ctx context.Context) {
	u.ctx = ctx
	go u.logs.run(ctx, func(text string) { _ = u.logBind.Set(text) })

	events, unsubscribe := u.analyzer.Subscribe(16)
	go func() {
		<-ctx.Done()
		unsubscribe()
	}()
	go u.watchStatus(events)

	if u.loader == nil {
		u.overlay.Hide()
		u.setStatus("Pronto")
		return
	}
	u.setBusy(true)
	go func() {
		err := u.loader.Load(ctx)
		fyne.Do(func() {
			if err != nil {
				u.showFatalError(err)
				return
			}
			u.overlay.Hide()
			u.setBusy(false)
			u.setStatus("Modelo pronto")
		})
	}()
}

// watchStatus drives the progress bar. The status line belongs to onAnalyze.
func (u *uiState) watchStatus(events <-chan bioscan.StatusEvent) {
	for ev := range events {
		running := ev.State == bioscan.StateRunning
		fyne.Do(func() {
			if running {
				u.progress.Show()
			} else {
				u.progress.Hide()
			}
		})
	}
}

func (u *uiState) setStatus(text string) {
	_ = u.statusBind.Set(text)
}

// setBusy must run on the UI goroutine.
func (u *uiState) setBusy(b bool) {
	for _, btn := range []*widget.Button{u.analyzeBtn, u.loadBtn, u.resetBtn} {
		if b {
			btn.Disable()
		} else {
			btn.Enable()
		}
	}
	u.updateExportButtons(b)
}

func (u *uiState) updateExportButtons(busy bool) {
	u.resultMu.Lock()
	has := u.result != nil
	u.resultMu.Unlock()
	for _, btn := range []*widget.Button{u.pdfBtn, u.csvBtn} {
		if has && !busy {
			btn.Enable()
		} else {
			btn.Disable()
		}
	}
}

// setResult must run on the UI goroutine.
func (u *uiState) setResult(res *bioscan.Result) {
	u.resultMu.Lock()
	u.result = res
	u.rows = resultRows(res)
	u.resultMu.Unlock()
	u.resTbl.Refresh()
	u.updateExportButtons(false)
}

func (u *uiState) onAnalyze() {
	sel := selectionFor(u.receptors.Selected)
	ctx := u.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	job, err := u.analyzer.Start(ctx, u.input.Text, sel)
	if err != nil {
		dialog.ShowInformation("Aviso", userMessage(err), u.w)
		return
	}
	u.setBusy(true)
	u.setResult(nil)
	u.setStatus(statusText(nil, nil))
	go func() {
		out := <-job.Done()
		fyne.Do(func() {
			u.setBusy(false)
			if out.Err != nil {
				u.setStatus(statusText(nil, out.Err))
				dialog.ShowError(errors.New(userMessage(out.Err)), u.w)
				return
			}
			res := out.Result
			u.setResult(&res)
			u.setStatus(statusText(&res, nil))
		})
	}()
}

func (u *uiState) onReset() {
	u.input.SetText("")
	u.receptors.ClearSelected()
	u.setResult(nil)
	u.setStatus("")
}

func (u *uiState) onLoadQuery() {
	fd := dialog.NewFileOpen(func(rc fyne.URIReadCloser, err error) {
		if err != nil {
			dialog.ShowError(err, u.w)
			return
		}
		if rc == nil {
			return
		}
		defer rc.Close()
		path := rc.URI().Path()
		raw, err := bioscan.ReadSequenceFile(path)
		if err != nil {
			dialog.ShowError(err, u.w)
			return
		}
		u.input.SetText(raw)
		u.logger.Info("query loaded", "file", filepath.Base(path), "residues", len(bioscan.NormalizeSequence(raw)))
	}, u.w)
	fd.SetFilter(storage.NewExtensionFileFilter(bioscan.SequenceFileExtensions))
	fd.Show()
}

func (u *uiState) onExport(format report.Format) {
	u.resultMu.Lock()
	res := u.result
	u.resultMu.Unlock()
	if res == nil {
		dialog.ShowInformation("Aviso", "Nenhum resultado para exportar.", u.w)
		return
	}
	fd := dialog.NewFileSave(func(uc fyne.URIWriteCloser, err error) {
		if err != nil {
			dialog.ShowError(err, u.w)
			return
		}
		if uc == nil {
			return
		}
		defer uc.Close()
		if err := report.Write(uc, format, *res); err != nil {
			dialog.ShowError(err, u.w)
			return
		}
		u.logger.Info("report exported", "format", format, "file", uc.URI().Name())
		dialog.ShowInformation("Sucesso", "Relatório exportado!", u.w)
	}, u.w)
	if loc := reportLocation(u.cfg.ReportDir); loc != nil {
		fd.SetLocation(loc)
	}
	fd.SetFileName(report.DefaultFileName(*res, format))
	fd.SetFilter(storage.NewExtensionFileFilter([]string{"." + string(format)}))
	fd.Show()
}

// reportLocation returns the export dialog start folder, creating it if needed.
func reportLocation(dir string) fyne.ListableURI {
	if dir == "" {
		return nil
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil
	}
	loc, err := storage.ListerForURI(storage.NewFileURI(abs))
	if err != nil {
		return nil
	}
	return loc
}

func (u *uiState) onAddReceptor() {
	entry, err := u.analyzer.Registry().Add(u.nameEntry.Text, u.seqEntry.Text)
	if err != nil {
		dialog.ShowInformation("Aviso", "Informe um nome e uma sequência com mais de 10 resíduos.", u.w)
		return
	}
	u.logger.Info("receptor registered", "name", entry.Name, "residues", len(entry.Sequence))
	u.nameEntry.SetText("")
	u.seqEntry.SetText("")
	u.refreshRegistry()
	dialog.ShowInformation("Sucesso", fmt.Sprintf("Receptor %s adicionado!", entry.Name), u.w)
}

func (u *uiState) onImportReceptors() {
	fd := dialog.NewFileOpen(func(rc fyne.URIReadCloser, err error) {
		if err != nil {
			dialog.ShowError(err, u.w)
			return
		}
		if rc == nil {
			return
		}
		defer rc.Close()
		entries, err := bioscan.LoadReceptorFile(rc.URI().Path())
		if err != nil {
			dialog.ShowError(err, u.w)
			return
		}
		if err := u.analyzer.Registry().AddAll(entries); err != nil {
			dialog.ShowError(err, u.w)
			return
		}
		u.logger.Info("receptors imported", "file", rc.URI().Name(), "count", len(entries))
		u.refreshRegistry()
		dialog.ShowInformation("Sucesso", fmt.Sprintf("%d receptores importados.", len(entries)), u.w)
	}, u.w)
	fd.SetFilter(storage.NewExtensionFileFilter(bioscan.SequenceFileExtensions))
	fd.Show()
}

// refreshRegistry must run on the UI goroutine.
func (u *uiState) refreshRegistry() {
	u.names = u.analyzer.Registry().Names()
	u.registryList.Refresh()
	selected := u.receptors.Selected
	u.receptors.Options = selectionOptions(u.names)
	if selected != "" {
		u.receptors.SetSelected(selected)
	}
	u.receptors.Refresh()
}

func (u *uiState) openSettings() {
	cfg := u.cfg.Clone()
	kindSel := widget.NewSelect([]string{string(bioscan.EmbedderONNX), string(bioscan.EmbedderComposition)}, nil)
	kindSel.SetSelected(string(cfg.Embedder.Kind))
	ortEntry := widget.NewEntry()
	ortEntry.SetText(cfg.Embedder.OrtDLL)
	modelEntry := widget.NewEntry()
	modelEntry.SetText(cfg.Embedder.ModelPath)
	tokEntry := widget.NewEntry()
	tokEntry.SetText(cfg.Embedder.TokenizerPath)
	tokEntry.SetPlaceHolder("vocabulário ESM embutido")
	cacheEntry := widget.NewEntry()
	cacheEntry.SetText(cfg.Embedder.CacheDir)
	seedsEntry := widget.NewEntry()
	seedsEntry.SetText(cfg.SeedsPath)

	form := &widget.Form{Items: []*widget.FormItem{
		{Text: "Provedor", Widget: kindSel},
		{Text: "Biblioteca ONNX Runtime", Widget: ortEntry},
		{Text: "Modelo (.onnx)", Widget: modelEntry},
		{Text: "Tokenizador", Widget: tokEntry},
		{Text: "Cache de assinaturas", Widget: cacheEntry},
		{Text: "Receptores extras (FASTA)", Widget: seedsEntry},
	}}

	dialog.NewCustomConfirm("Configurações", "Salvar", "Cancelar", form, func(ok bool) {
		if !ok {
			return
		}
		cfg.Embedder.Kind = bioscan.EmbedderKind(kindSel.Selected)
		cfg.Embedder.OrtDLL = strings.TrimSpace(ortEntry.Text)
		cfg.Embedder.ModelPath = strings.TrimSpace(modelEntry.Text)
		cfg.Embedder.TokenizerPath = strings.TrimSpace(tokEntry.Text)
		cfg.Embedder.CacheDir = strings.TrimSpace(cacheEntry.Text)
		cfg.SeedsPath = strings.TrimSpace(seedsEntry.Text)
		if err := bioscan.SaveConfig(u.cfgPath, cfg); err != nil {
			dialog.ShowError(err, u.w)
			return
		}
		u.cfg = cfg
		u.logger.Info("configuration saved", "path", u.cfgPath)
		dialog.ShowInformation("Configurações", "Configuração salva. Reinicie o aplicativo para aplicar.", u.w)
	}, u.w).Show()
}

// showFatalError replaces the window content with the error; the app cannot continue.
func (u *uiState) showFatalError(err error) {
	u.logger.Error("startup failed", "error", err)
	u.overlay.Hide()
	msg := widget.NewLabel(userMessage(err))
	msg.Wrapping = fyne.TextWrapWord
	u.w.SetContent(container.NewCenter(msg))
	dialog.ShowError(errors.New("Erro Crítico: "+userMessage(err)), u.w)
}

// elapsedLabel formats a duration for the status line.
func elapsedLabel(d time.Duration) string {
	return fmt.Sprintf("%.1fs", d.Seconds())
}
