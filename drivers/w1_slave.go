package drivers

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const (
	w1SlaveFile      = "w1_slave"
	w1ValidToken     = "YES"
	w1TemperatureTag = "t="
)

// w1Raw is the content of a w1_slave file:
//
//	72 01 4b 46 7f ff 0e 10 57 : crc=57 YES
//	72 01 4b 46 7f ff 0e 10 57 t=23125
type w1Raw struct {
	ready bool
	milli int64
}

func lastToken(line string) string {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}

func parseW1Slave(r io.Reader) (raw w1Raw, err error) {
	var tokens []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		tokens = append(tokens, lastToken(scanner.Text()))
	}
	if err = scanner.Err(); err != nil {
		err = errors.Wrapf(IOError, "reading w1_slave: %v", err)
		return
	}
	if len(tokens) == 0 {
		err = errors.Wrap(ParseError, "empty w1_slave record")
		return
	}

	if tokens[0] != w1ValidToken {
		return
	}
	if len(tokens) < 2 {
		err = errors.Wrap(ParseError, "w1_slave record has no temperature line")
		return
	}

	value, found := strings.CutPrefix(tokens[1], w1TemperatureTag)
	if !found {
		err = errors.Wrapf(ParseError, "unexpected temperature token %q", tokens[1])
		return
	}
	raw.milli, err = strconv.ParseInt(value, 10, 64)
	if err != nil {
		err = errors.Wrapf(ParseError, "failed converting temperature string %q to milli °C int value: %v", value, err)
		return
	}
	raw.ready = true
	return
}
