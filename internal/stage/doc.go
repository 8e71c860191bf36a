// Package stage содержит обработчики четырёх этапов пайплайна
// реставрации: анализ, планирование, редактирование и валидация.
//
// Каждый обработчик реализует интерфейс Handler: собирает запрос к
// внешней генеративной capability из текущего состояния run и разбирает
// ответ модели в типизированный payload этапа. Обработчики не ходят в
// сеть и не трогают хранилище — это чистые построители и декодеры;
// выполнение запроса и персистентность лежат на пайплайне.
//
// Реестр Registry сопоставляет этапы обработчикам. DefaultRegistry
// возвращает полный набор для штатного пайплайна; в тестах реестр
// собирается вручную с подменёнными обработчиками.
//
// Промпты зависят от режима обработки (RESTORE, ENHANCE, REIMAGINE):
// режим меняет формулировку задания модели, но не структуру пайплайна.
package stage
