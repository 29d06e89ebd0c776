// Package callback encodes and decodes the tokens carried on inline
// keyboard buttons. Tokens are short underscore-separated strings; every
// decoder validates the field count for its context and rejects anything
// else with ErrMalformed so a stray button press never mutates state.
package callback

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const sep = "_"

// ErrMalformed marks a token that fails shape or arity validation.
// Callers treat it as a no-op acknowledgement.
var ErrMalformed = errors.New("malformed callback data")

// TorrentAction is the verb carried on a torrent detail token.
type TorrentAction string

const (
	ActionView   TorrentAction = "view"
	ActionStart  TorrentAction = "start"
	ActionStop   TorrentAction = "stop"
	ActionVerify TorrentAction = "verify"
	ActionReload TorrentAction = "reload"
)

// AddAction is the verb carried on an add-flow token.
type AddAction string

const (
	AddStart  AddAction = "start"
	AddCancel AddAction = "cancel"
)

// Prefixes routed on by the dispatcher.
const (
	PrefixTorrent          = "torrent"
	PrefixGoto             = "torrentsgoto"
	PrefixFiles            = "torrentsfiles"
	PrefixDeleteMenu       = "deletemenutorrent"
	PrefixDelete           = "deletetorrent"
	PrefixEditFile         = "editfile"
	PrefixSelectFiles      = "selectfiles"
	PrefixFileSelect       = "fileselect"
	PrefixAddMenu          = "addmenu"
	PrefixAddAction        = "torrentadd"
	PrefixSettings         = "settings"
	PrefixChangeServerMenu = "changeservermenu"
	PrefixServer           = "server"
)

// Prefix returns the routing prefix of a token (everything before the
// first separator).
func Prefix(data string) string {
	prefix, _, _ := strings.Cut(data, sep)
	return prefix
}

/* Encoding */

func Torrent(id int64) string {
	return fmt.Sprintf("%s_%d", PrefixTorrent, id)
}

func TorrentWithAction(id int64, action TorrentAction) string {
	return fmt.Sprintf("%s_%d_%s", PrefixTorrent, id, action)
}

func Goto(offset int) string {
	return fmt.Sprintf("%s_%d", PrefixGoto, offset)
}

func GotoReload(offset int) string {
	return fmt.Sprintf("%s_%d_reload", PrefixGoto, offset)
}

func Files(id int64) string {
	return fmt.Sprintf("%s_%d", PrefixFiles, id)
}

func FilesReload(id int64) string {
	return fmt.Sprintf("%s_%d_reload", PrefixFiles, id)
}

func DeleteMenu(id int64) string {
	return fmt.Sprintf("%s_%d", PrefixDeleteMenu, id)
}

func Delete(id int64, withData bool) string {
	if withData {
		return fmt.Sprintf("%s_%d_data", PrefixDelete, id)
	}
	return fmt.Sprintf("%s_%d", PrefixDelete, id)
}

func EditFile(id int64, file int, wanted bool) string {
	return fmt.Sprintf("%s_%d_%d_%d", PrefixEditFile, id, file, boolToInt(wanted))
}

func SelectFiles(id int64) string {
	return fmt.Sprintf("%s_%d", PrefixSelectFiles, id)
}

func FileSelect(id int64, file int, wanted bool) string {
	return fmt.Sprintf("%s_%d_%d_%d", PrefixFileSelect, id, file, boolToInt(wanted))
}

func AddMenu(id int64) string {
	return fmt.Sprintf("%s_%d", PrefixAddMenu, id)
}

func Add(id int64, action AddAction) string {
	return fmt.Sprintf("%s_%d_%s", PrefixAddAction, id, action)
}

func Settings() string {
	return PrefixSettings
}

func ChangeServerMenu(page int) string {
	return fmt.Sprintf("%s_%d", PrefixChangeServerMenu, page)
}

func Server(index, page int) string {
	return fmt.Sprintf("%s_%d_%d", PrefixServer, index, page)
}

/* Decoding */

// ParseTorrent decodes torrent_{id} and torrent_{id}_{action} tokens. The
// two-field form means view.
func ParseTorrent(data string) (int64, TorrentAction, error) {
	parts, err := fields(data, PrefixTorrent, 2, 3)
	if err != nil {
		return 0, "", err
	}

	id, err := parseID(parts[1])
	if err != nil {
		return 0, "", err
	}

	if len(parts) == 2 {
		return id, ActionView, nil
	}

	switch action := TorrentAction(parts[2]); action {
	case ActionStart, ActionStop, ActionVerify, ActionReload:
		return id, action, nil
	default:
		return 0, "", errors.Wrapf(ErrMalformed, "unknown torrent action %q", parts[2])
	}
}

// ParseGoto decodes torrentsgoto_{offset} and torrentsgoto_{offset}_reload.
func ParseGoto(data string) (int, bool, error) {
	parts, err := fields(data, PrefixGoto, 2, 3)
	if err != nil {
		return 0, false, err
	}

	offset, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, false, errors.Wrapf(ErrMalformed, "offset %q", parts[1])
	}

	if len(parts) == 3 {
		if parts[2] != "reload" {
			return 0, false, errors.Wrapf(ErrMalformed, "unknown goto qualifier %q", parts[2])
		}
		return offset, true, nil
	}
	return offset, false, nil
}

// ParseFiles decodes torrentsfiles_{id} and torrentsfiles_{id}_reload.
func ParseFiles(data string) (int64, bool, error) {
	parts, err := fields(data, PrefixFiles, 2, 3)
	if err != nil {
		return 0, false, err
	}

	id, err := parseID(parts[1])
	if err != nil {
		return 0, false, err
	}

	if len(parts) == 3 {
		if parts[2] != "reload" {
			return 0, false, errors.Wrapf(ErrMalformed, "unknown files qualifier %q", parts[2])
		}
		return id, true, nil
	}
	return id, false, nil
}

// ParseDeleteMenu decodes deletemenutorrent_{id}.
func ParseDeleteMenu(data string) (int64, error) {
	return parseSingleID(data, PrefixDeleteMenu)
}

// ParseDelete decodes deletetorrent_{id} and deletetorrent_{id}_data.
func ParseDelete(data string) (int64, bool, error) {
	parts, err := fields(data, PrefixDelete, 2, 3)
	if err != nil {
		return 0, false, err
	}

	id, err := parseID(parts[1])
	if err != nil {
		return 0, false, err
	}

	if len(parts) == 3 {
		if parts[2] != "data" {
			return 0, false, errors.Wrapf(ErrMalformed, "unknown delete qualifier %q", parts[2])
		}
		return id, true, nil
	}
	return id, false, nil
}

// ParseEditFile decodes editfile_{id}_{file}_{state} tokens from the
// torrent files view.
func ParseEditFile(data string) (int64, int, bool, error) {
	return parseFileToggle(data, PrefixEditFile)
}

// ParseFileSelect decodes fileselect_{id}_{file}_{state} tokens from the
// add-flow file selection view.
func ParseFileSelect(data string) (int64, int, bool, error) {
	return parseFileToggle(data, PrefixFileSelect)
}

// ParseSelectFiles decodes selectfiles_{id}.
func ParseSelectFiles(data string) (int64, error) {
	return parseSingleID(data, PrefixSelectFiles)
}

// ParseAddMenu decodes addmenu_{id}.
func ParseAddMenu(data string) (int64, error) {
	return parseSingleID(data, PrefixAddMenu)
}

// ParseAdd decodes torrentadd_{id}_{start|cancel}.
func ParseAdd(data string) (int64, AddAction, error) {
	parts, err := fields(data, PrefixAddAction, 3, 3)
	if err != nil {
		return 0, "", err
	}

	id, err := parseID(parts[1])
	if err != nil {
		return 0, "", err
	}

	switch action := AddAction(parts[2]); action {
	case AddStart, AddCancel:
		return id, action, nil
	default:
		return 0, "", errors.Wrapf(ErrMalformed, "unknown add action %q", parts[2])
	}
}

// ParseChangeServerMenu decodes changeservermenu_{page}.
func ParseChangeServerMenu(data string) (int, error) {
	parts, err := fields(data, PrefixChangeServerMenu, 2, 2)
	if err != nil {
		return 0, err
	}

	page, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, errors.Wrapf(ErrMalformed, "page %q", parts[1])
	}
	return page, nil
}

// ParseServer decodes server_{index}_{page}.
func ParseServer(data string) (int, int, error) {
	parts, err := fields(data, PrefixServer, 3, 3)
	if err != nil {
		return 0, 0, err
	}

	index, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, errors.Wrapf(ErrMalformed, "server index %q", parts[1])
	}
	page, err := strconv.Atoi(parts[2])
	if err != nil {
		return 0, 0, errors.Wrapf(ErrMalformed, "page %q", parts[2])
	}
	return index, page, nil
}

/* Internal */

func fields(data, prefix string, minArity, maxArity int) ([]string, error) {
	parts := strings.Split(data, sep)
	if parts[0] != prefix {
		return nil, errors.Wrapf(ErrMalformed, "expected %s token, got %q", prefix, data)
	}
	if len(parts) < minArity || len(parts) > maxArity {
		return nil, errors.Wrapf(ErrMalformed, "%s token has %d fields", prefix, len(parts))
	}
	return parts, nil
}

func parseID(field string) (int64, error) {
	id, err := strconv.ParseInt(field, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(ErrMalformed, "torrent id %q", field)
	}
	return id, nil
}

func parseSingleID(data, prefix string) (int64, error) {
	parts, err := fields(data, prefix, 2, 2)
	if err != nil {
		return 0, err
	}
	return parseID(parts[1])
}

func parseFileToggle(data, prefix string) (int64, int, bool, error) {
	parts, err := fields(data, prefix, 4, 4)
	if err != nil {
		return 0, 0, false, err
	}

	id, err := parseID(parts[1])
	if err != nil {
		return 0, 0, false, err
	}
	file, err := strconv.Atoi(parts[2])
	if err != nil {
		return 0, 0, false, errors.Wrapf(ErrMalformed, "file index %q", parts[2])
	}

	switch parts[3] {
	case "0":
		return id, file, false, nil
	case "1":
		return id, file, true, nil
	default:
		return 0, 0, false, errors.Wrapf(ErrMalformed, "file state %q", parts[3])
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
